package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const detectSampleSize = 10 * 1024

// ReadCSV loads a delimited text file into a single Table named after the file
// (without extension). Encoding resolution order: detected charset, UTF-8,
// Latin-1. Latin-1 never fails (every byte maps), so the chain always yields
// something readable.
func ReadCSV(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}

	text := decodeText(raw)

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t := Table{Name: name, Rows: normalize(records)}
	log.Info().Str("file", path).Int("rows", t.RowCount()).Msg("csv loaded")
	return t, nil
}

func decodeText(raw []byte) string {
	// BOM wins over detection
	if bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		return string(raw[3:])
	}

	sample := raw
	if len(sample) > detectSampleSize {
		sample = sample[:detectSampleSize]
	}

	if res, err := chardet.NewTextDetector().DetectBest(sample); err == nil {
		if dec := decoderFor(res.Charset); dec != nil {
			if out, _, err := transform.Bytes(dec, raw); err == nil {
				return string(out)
			}
			log.Warn().Str("charset", res.Charset).Msg("detected charset failed to decode, falling back")
		}
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	// Latin-1: total function over bytes
	out, _, _ := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
	return string(out)
}

func decoderFor(charset string) transform.Transformer {
	switch charset {
	case "ISO-8859-1":
		return charmap.ISO8859_1.NewDecoder()
	case "windows-1252":
		return charmap.Windows1252.NewDecoder()
	case "Shift_JIS":
		return japanese.ShiftJIS.NewDecoder()
	case "EUC-JP":
		return japanese.EUCJP.NewDecoder()
	case "ISO-2022-JP":
		return japanese.ISO2022JP.NewDecoder()
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		return nil
	}
}
