package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies an input file for the converter.
type Kind int

const (
	KindUnsupported Kind = iota
	KindWorkbook         // .xlsx / .xls sheet-structured workbook
	KindCSV              // delimited text table
)

func (k Kind) String() string {
	switch k {
	case KindWorkbook:
		return "workbook"
	case KindCSV:
		return "csv"
	default:
		return "unsupported"
	}
}

// Info contains detected file type information.
type Info struct {
	Kind        Kind
	MIMEType    string
	Extension   string
	Description string
}

// Detector handles file type detection using magic bytes.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename alone.
// The extension is still consulted to disambiguate container formats: modern
// Office workbooks are ZIP archives and legacy ones are OLE storages.
func (d *Detector) Detect(filePath string) (*Info, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, err
	}

	mimeType := mtype.String()
	ext := strings.ToLower(filepath.Ext(filePath))

	log.Debug().Str("mime", mimeType).Str("ext", ext).Str("file", filePath).Msg("detected file type")

	if mimeType == "application/zip" || strings.Contains(mimeType, "application/x-zip") {
		if ext == ".xlsx" {
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			log.Debug().Str("original", mtype.String()).Str("override", mimeType).Msg("overriding ZIP detection based on extension")
		} else {
			log.Warn().Str("ext", ext).Msg("ZIP file with non-workbook extension")
		}
	}

	if mimeType == "application/x-ole-storage" || mimeType == "application/x-cfb" {
		if ext == ".xls" {
			mimeType = "application/vnd.ms-excel"
			log.Debug().Str("original", mtype.String()).Str("override", mimeType).Msg("overriding OLE detection based on extension")
		} else {
			log.Warn().Str("ext", ext).Msg("OLE storage with non-workbook extension")
		}
	}

	info := &Info{MIMEType: mimeType, Extension: ext}
	d.classify(info)
	return info, nil
}

// DetectByExtension classifies by filename alone. Used when the file is not on
// disk yet (upload allow-lists) or as the cheap first pass before reading.
func DetectByExtension(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return KindWorkbook
	case ".csv":
		return KindCSV
	default:
		return KindUnsupported
	}
}

func (d *Detector) classify(info *Info) {
	switch {
	case info.MIMEType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		info.Kind = KindWorkbook
		info.Description = "Microsoft Excel workbook"

	case info.MIMEType == "application/vnd.ms-excel":
		info.Kind = KindWorkbook
		info.Description = "Microsoft Excel workbook (legacy)"

	case info.MIMEType == "application/vnd.oasis.opendocument.spreadsheet":
		// ODS cells are not readable by our workbook reader yet
		info.Kind = KindUnsupported
		info.Description = "OpenDocument spreadsheet (not supported)"

	case info.MIMEType == "text/csv":
		info.Kind = KindCSV
		info.Description = "Delimited text table"

	case strings.HasPrefix(info.MIMEType, "text/") && info.Extension == ".csv":
		// chardet-unfriendly encodings can detect as text/plain
		info.Kind = KindCSV
		info.Description = "Delimited text table"

	default:
		info.Kind = KindUnsupported
		info.Description = "Unsupported file type: " + info.MIMEType
	}
}
