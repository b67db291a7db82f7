package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/pbcheck/internal/domain"
)

// WriteBreakdown renders, for every file with findings, a header naming
// the file and its publication name followed by that file's own summary
// lines. Clean files are skipped.
func WriteBreakdown(w io.Writer, run domain.Run) error {
	for _, res := range run.Files {
		if len(res.Findings) == 0 {
			continue
		}
		header := res.File
		if res.Webpage != "" {
			header += " (" + res.Webpage + ")"
		}
		s := &Summary{}
		s.AddResult(res)
		if _, err := fmt.Fprintf(w, "%s: %d defects, %d info\n", header,
			s.Total(domain.SeverityDefect)+s.Total(domain.SeverityFatal), s.Total(domain.SeverityInfo)); err != nil {
			return err
		}
		for _, e := range s.Entries() {
			if _, err := fmt.Fprintf(w, "%4d || %s\n", e.Count, e.Label()); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileReportName is the name of the report file of a .pb file:
// the base name without its extension, suffixed with _report.txt.
func FileReportName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_report.txt"
}

// AppendFileReport appends one line per finding of res to the file's
// report in dir, creating it when missing, and returns its path. Details
// are collapsed to a single line.
func AppendFileReport(dir string, res domain.FileResult) (string, error) {
	path := filepath.Join(dir, FileReportName(res.File))

	var b strings.Builder
	for _, f := range res.Findings {
		b.WriteString(strings.Join(strings.Fields(f.Detail), " "))
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return path, nil
	}

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	if _, err := io.WriteString(fh, b.String()); err != nil {
		fh.Close()
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	if err := fh.Close(); err != nil {
		return "", fmt.Errorf("close report %s: %w", path, err)
	}
	return path, nil
}
