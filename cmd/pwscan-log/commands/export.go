package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pwscan/pwscan-go/pkg/log"
)

// exporter writes a stream of events in one output format.
type exporter interface {
	write(event log.Event) error
	flush() error
}

var exporters = map[string]func(io.Writer) (exporter, error){
	"jsonl": newJSONLExporter,
	"csv":   newCSVExporter,
}

// ExportFormats lists the formats RunExport accepts.
func ExportFormats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunExport converts the log at path to format, writing to output or to
// stdout when output is empty.
func RunExport(path, format, output string) error {
	newExporter, ok := exporters[format]
	if !ok {
		return fmt.Errorf("unknown format: %s (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	w := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	exp, err := newExporter(w)
	if err != nil {
		return err
	}
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := exp.write(event); err != nil {
			return fmt.Errorf("failed to export event: %w", err)
		}
	}
	return exp.flush()
}

type jsonlExporter struct{ enc *json.Encoder }

func newJSONLExporter(w io.Writer) (exporter, error) {
	return jsonlExporter{enc: json.NewEncoder(w)}, nil
}

func (e jsonlExporter) write(event log.Event) error { return e.enc.Encode(event) }

func (jsonlExporter) flush() error { return nil }

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "type", "object", "seq"}

type csvExporter struct{ w *csv.Writer }

func newCSVExporter(w io.Writer) (exporter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return csvExporter{w: cw}, nil
}

func (e csvExporter) write(event log.Event) error {
	kind, object, seq := "unknown", "", ""
	switch {
	case event.Frame != nil:
		kind = "frame"
	case event.Message != nil:
		kind = event.Message.Op.String()
		object = strconv.FormatUint(uint64(event.Message.ObjectID), 10)
		if event.Message.Seq != nil {
			seq = strconv.FormatUint(uint64(*event.Message.Seq), 10)
		}
	case event.StateChange != nil:
		kind = "state"
	case event.Error != nil:
		kind = "error"
	}

	return e.w.Write([]string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		kind,
		object,
		seq,
	})
}

func (e csvExporter) flush() error {
	e.w.Flush()
	return e.w.Error()
}
