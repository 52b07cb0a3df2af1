package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"remotepad/internal/model"
)

var header = []string{
	"timestamp",
	"connection_id",
	"remote",
	"action",
	"bytes",
	"write_ms",
	"ok",
	"error",
}

// WriteCSV writes samples to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []model.SendSample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	return writeRecords(writer, items)
}

// AppendCSV appends samples to path, writing the header only when the file is new or empty.
func AppendCSV(path string, items []model.SendSample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	return writeRecords(writer, items)
}

func writeRecords(writer *csv.Writer, items []model.SendSample) error {
	for _, s := range items {
		record := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.ConnectionID,
			s.Remote,
			s.Action,
			strconv.Itoa(s.Bytes),
			strconv.FormatFloat(s.WriteMs, 'f', 3, 64),
			strconv.FormatBool(s.OK),
			s.Error,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV loads samples from a CSV file.
func ReadCSV(path string) ([]model.SendSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]model.SendSample, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if len(records[0]) > 0 && records[0][0] == "timestamp" {
		start = 1
	}

	items := make([]model.SendSample, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) < len(header) {
			return nil, fmt.Errorf("invalid record at line %d", i+1)
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", i+1, err)
		}
		n, _ := strconv.Atoi(rec[4])
		writeMs, _ := strconv.ParseFloat(rec[5], 64)
		ok, _ := strconv.ParseBool(rec[6])
		items = append(items, model.SendSample{
			Timestamp:    ts,
			ConnectionID: rec[1],
			Remote:       rec[2],
			Action:       rec[3],
			Bytes:        n,
			WriteMs:      writeMs,
			OK:           ok,
			Error:        rec[7],
		})
	}

	return items, nil
}
