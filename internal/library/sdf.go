// Package library serves random MOL records out of an SDF file through a
// byte-offset index.
package library

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const recordTerminator = "$$$$"

// BuildIndex scans an SDF stream and returns the byte offset at which each
// record starts. Blank lines after the last terminator do not form a record.
func BuildIndex(r io.Reader) ([]int64, error) {
	reader := bufio.NewReader(r)
	var (
		offsets  []int64
		pos      int64
		inRecord bool
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == recordTerminator:
			inRecord = false
		case !inRecord && trimmed != "":
			offsets = append(offsets, pos)
			inRecord = true
		}
		pos += int64(len(line))
		if err == io.EOF {
			break
		}
	}
	return offsets, nil
}

// WriteIndex writes one decimal offset per line.
func WriteIndex(w io.Writer, offsets []int64) error {
	bw := bufio.NewWriter(w)
	for _, off := range offsets {
		if _, err := bw.WriteString(strconv.FormatInt(off, 10) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadIndex reads an index file written by WriteIndex. Blank lines are
// ignored.
func LoadIndex(idxPath string) ([]int64, error) {
	file, err := os.Open(idxPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var offsets []int64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		off, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse offset %q: %w", line, err)
		}
		offsets = append(offsets, off)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return offsets, nil
}

// ReadRecord returns the text of the record starting at off, up to but not
// including its "$$$$" line. Every line keeps a trailing newline.
func ReadRecord(sdfPath string, off int64) (string, error) {
	f, err := os.Open(sdfPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return "", err
	}

	reader := bufio.NewReader(f)
	var sb strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if strings.TrimSpace(line) == recordTerminator {
			break
		}
		sb.WriteString(line)
		if line != "" && !strings.HasSuffix(line, "\n") {
			sb.WriteString("\n")
		}
		if err == io.EOF {
			break
		}
	}
	return sb.String(), nil
}

// SplitRecords cuts multi-record SDF text on "$$$$" lines and drops empty
// pieces.
func SplitRecords(text string) []string {
	var (
		records []string
		sb      strings.Builder
	)
	flush := func() {
		if strings.TrimSpace(sb.String()) != "" {
			records = append(records, sb.String())
		}
		sb.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.TrimSpace(line) == recordTerminator {
			flush()
			continue
		}
		sb.WriteString(line)
	}
	flush()
	return records
}
