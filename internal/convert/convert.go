package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/local/sheetmd/internal/ai"
	"github.com/local/sheetmd/internal/config"
	"github.com/local/sheetmd/internal/filetype"
	"github.com/local/sheetmd/internal/metrics"
	"github.com/local/sheetmd/internal/tabular"
	"github.com/rs/zerolog/log"
)

// Result aggregates one conversion run.
type Result struct {
	Created []string     // paths of markdown files written
	Errors  []ErrorEntry // per-file or per-sheet failures
}

// Coordinator runs the whole pipeline for one input file or directory:
// read tables, plan batches, generate, parse, materialize, with per-sheet
// fallback when a batch fails terminally. Single-threaded on purpose; the
// upstream service rate limits aggressively and sequential pacing with
// explicit delays is what keeps large workbooks converting at all.
type Coordinator struct {
	gen      *Generator
	prompts  *PromptBuilder
	cfg      config.ConvertConfig
	detector *filetype.Detector

	sleep func(time.Duration) // swapped out in tests
}

// NewCoordinator wires the pipeline from configuration and a generation client.
func NewCoordinator(client ai.Client, aiCfg config.AIConfig, cfg config.ConvertConfig) *Coordinator {
	return &Coordinator{
		gen:      NewGenerator(client, aiCfg.Model, cfg.MaxRetries, cfg.InitialRetryDelay),
		prompts:  &PromptBuilder{Extra: cfg.ExtraInstructions},
		cfg:      cfg,
		detector: filetype.New(),
		sleep:    time.Sleep,
	}
}

// Convert processes inputPath, which may be a single file or a directory.
// Directories are scanned non-recursively for workbook and CSV files, in
// lexical order. Errors are collected per input, never aborting the run.
func (c *Coordinator) Convert(ctx context.Context, inputPath, outputDir string) Result {
	fi, err := os.Stat(inputPath)
	if err != nil {
		return Result{Errors: []ErrorEntry{{File: inputPath, Err: err.Error()}}}
	}

	if !fi.IsDir() {
		return c.ConvertFile(ctx, inputPath, outputDir)
	}

	entries, err := os.ReadDir(inputPath)
	if err != nil {
		return Result{Errors: []ErrorEntry{{File: inputPath, Err: err.Error()}}}
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filetype.DetectByExtension(e.Name()) != filetype.KindUnsupported {
			paths = append(paths, filepath.Join(inputPath, e.Name()))
		}
	}
	sort.Strings(paths)
	log.Info().Str("dir", inputPath).Int("files", len(paths)).Msg("converting directory")

	var res Result
	for _, p := range paths {
		one := c.ConvertFile(ctx, p, outputDir)
		res.Created = append(res.Created, one.Created...)
		res.Errors = append(res.Errors, one.Errors...)
	}
	return res
}

// ConvertFile converts one spreadsheet or CSV file into markdown files under
// outputDir. A failed batch falls back to per-sheet generation; only sheets
// that fail individually end up in the error report.
func (c *Coordinator) ConvertFile(ctx context.Context, path, outputDir string) Result {
	base := fileStem(path)
	mat := Materializer{OutputDir: outputDir}

	info, err := c.detector.Detect(path)
	if err != nil {
		return Result{Errors: []ErrorEntry{{File: filepath.Base(path), Err: err.Error()}}}
	}
	log.Info().Str("file", path).Str("type", info.Description).Msg("converting file")

	switch info.Kind {
	case filetype.KindWorkbook:
		return c.convertWorkbook(ctx, path, base, mat)
	case filetype.KindCSV:
		return c.convertCSV(ctx, path, base, mat)
	default:
		return Result{Errors: []ErrorEntry{{
			File: filepath.Base(path),
			Err:  info.Description,
		}}}
	}
}

func (c *Coordinator) convertWorkbook(ctx context.Context, path, base string, mat Materializer) Result {
	var res Result
	fileName := filepath.Base(path)

	tables, err := tabular.ReadWorkbook(path)
	if err != nil {
		res.Errors = append(res.Errors, ErrorEntry{File: fileName, Err: err.Error()})
		return res
	}
	if len(tables) == 0 {
		res.Errors = append(res.Errors, ErrorEntry{File: fileName, Err: "workbook has no sheets"})
		return res
	}

	batches := PlanBatches(tables, PlanOptions{
		MaxTokens:        c.cfg.MaxTokensPerBatch,
		MaxBatchSize:     c.cfg.MaxBatchSize,
		AvgCharsPerToken: c.cfg.AvgCharsPerToken,
		PromptOverhead:   c.prompts.TemplateOverhead(c.cfg.AvgCharsPerToken),
	})

	for bi, batch := range batches {
		if bi > 0 && c.cfg.BatchDelay > 0 {
			log.Debug().Dur("delay", c.cfg.BatchDelay).Msg("pausing between batches")
			c.sleep(c.cfg.BatchDelay)
		}
		log.Info().Int("batch", bi+1).Int("of", len(batches)).Int("sheets", len(batch)).Msg("processing batch")

		data := MergeBatch(tables, batch, c.cfg.MaxRowsPerTable)
		prompt := c.prompts.Batch(data, len(batch))

		raw, err := c.gen.Generate(ctx, prompt)
		if err != nil {
			metrics.IncBatch("fallback")
			log.Warn().Err(err).Int("batch", bi+1).Msg("batch generation failed, falling back to per-sheet mode")
			created, errs := c.fallbackSheets(ctx, tables, batch, base, fileName, mat)
			res.Created = append(res.Created, created...)
			res.Errors = append(res.Errors, errs...)
			continue
		}

		expected := make([]string, len(batch))
		for i, idx := range batch {
			expected[i] = tables[idx].Name
		}
		parsed := ParseResponse(raw, base, base+"_batch_"+strconv.Itoa(batch[0]+1), expected)

		created, werr := mat.Write(parsed.Files)
		res.Created = append(res.Created, created...)
		if werr != nil {
			metrics.IncBatch("error")
			res.Errors = append(res.Errors, ErrorEntry{File: fileName, Err: werr.Error()})
			continue
		}
		metrics.IncBatch("success")
		for range batch {
			metrics.IncSheet("batch", "success")
		}
	}
	return res
}

// fallbackSheets reprocesses every sheet of a failed batch one at a time with
// a smaller row ceiling. Pacing between sheets is deliberate: the batch most
// likely failed on rate limits.
func (c *Coordinator) fallbackSheets(ctx context.Context, tables []tabular.Table, batch []int, base, fileName string, mat Materializer) ([]string, []ErrorEntry) {
	var created []string
	var errs []ErrorEntry

	for si, idx := range batch {
		if si > 0 && c.cfg.SheetDelay > 0 {
			c.sleep(c.cfg.SheetDelay)
		}
		t := tables[idx]
		log.Info().Str("sheet", t.Name).Int("index", idx+1).Msg("converting sheet individually")

		capped, truncated := t.Head(c.cfg.MaxRowsFallback)
		if truncated {
			log.Warn().Str("sheet", t.Name).Int("rows", t.RowCount()).Int("limit", c.cfg.MaxRowsFallback).Msg("sheet truncated for fallback payload")
		}

		data := fmt.Sprintf("Sheet '%s' from file '%s':\n\n%s", t.Name, fileName, capped.Render())
		prompt := c.prompts.Single(data, true)

		raw, err := c.gen.Generate(ctx, prompt)
		if err != nil {
			metrics.IncSheet("fallback", "error")
			errs = append(errs, ErrorEntry{
				File: fileName + " - " + t.Name,
				Err:  friendlyMessage(c.gen.model, err),
			})
			continue
		}

		sheetBase := base + "_" + SanitizeName(t.Name)
		parsed := ParseResponse(raw, sheetBase, sheetBase, nil)
		paths, werr := mat.Write(parsed.Files)
		created = append(created, paths...)
		if werr != nil {
			metrics.IncSheet("fallback", "error")
			errs = append(errs, ErrorEntry{File: fileName + " - " + t.Name, Err: werr.Error()})
			continue
		}
		metrics.IncSheet("fallback", "success")
	}
	return created, errs
}

func (c *Coordinator) convertCSV(ctx context.Context, path, base string, mat Materializer) Result {
	var res Result
	fileName := filepath.Base(path)

	table, err := tabular.ReadCSV(path)
	if err != nil {
		res.Errors = append(res.Errors, ErrorEntry{File: fileName, Err: err.Error()})
		return res
	}

	capped, truncated := table.Head(c.cfg.MaxRowsPerTable)
	if truncated {
		log.Warn().Str("file", fileName).Int("rows", table.RowCount()).Int("limit", c.cfg.MaxRowsPerTable).Msg("CSV truncated for payload")
	}

	data := fmt.Sprintf("CSV file '%s':\n\n%s", fileName, capped.Render())
	prompt := c.prompts.Single(data, false)

	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		metrics.IncSheet("csv", "error")
		res.Errors = append(res.Errors, ErrorEntry{File: fileName, Err: friendlyMessage(c.gen.model, err)})
		return res
	}

	parsed := ParseResponse(raw, base, base, nil)
	created, werr := mat.Write(parsed.Files)
	res.Created = append(res.Created, created...)
	if werr != nil {
		metrics.IncSheet("csv", "error")
		res.Errors = append(res.Errors, ErrorEntry{File: fileName, Err: werr.Error()})
		return res
	}
	metrics.IncSheet("csv", "success")
	return res
}

func fileStem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
