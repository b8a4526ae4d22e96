package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

const (
	summaryFile = "summary.json"
	inputsFile  = "opportunities.jsonl"

	// multipartThreshold switches input uploads to the multipart manager.
	multipartThreshold = 16 * 1024 * 1024
)

var _ domain.ReportArchiver = (*Archiver)(nil)

// Archiver implements domain.ReportArchiver. Each simulation is written to
// its own directory:
//
//	simulations/2026/03/01/<id>/summary.json
//	simulations/2026/03/01/<id>/opportunities.jsonl
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader) *Archiver {
	return &Archiver{writer: writer, reader: reader}
}

// ArchiveSimulation uploads the inputs first and the summary last, so a
// present summary implies complete inputs. It returns the directory path.
func (a *Archiver) ArchiveSimulation(ctx context.Context, s domain.SimulationSummary, inputs []domain.Opportunity) (string, error) {
	if s.ID == "" {
		return "", fmt.Errorf("s3blob: archive simulation: empty id")
	}
	dir := simulationDir(s.ID, s.CreatedAt)

	lines, err := marshalJSONL(inputs)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive simulation %s inputs: %w", s.ID, err)
	}
	inputsPath := path.Join(dir, inputsFile)
	if len(lines) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, inputsPath, bytes.NewReader(lines), MinPartSize)
	} else {
		err = a.writer.Put(ctx, inputsPath, bytes.NewReader(lines), "application/x-ndjson")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive simulation %s inputs: %w", s.ID, err)
	}

	summary, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive simulation %s summary: %w", s.ID, err)
	}
	if err := a.writer.Put(ctx, path.Join(dir, summaryFile), bytes.NewReader(summary), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive simulation %s summary: %w", s.ID, err)
	}
	return dir, nil
}

// LoadOpportunities reads opportunities from a JSONL object. p may name the
// object itself or a directory written by ArchiveSimulation.
func (a *Archiver) LoadOpportunities(ctx context.Context, p string) ([]domain.Opportunity, error) {
	if path.Ext(p) == "" {
		p = path.Join(p, inputsFile)
	}
	body, err := a.reader.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load opportunities: %w", err)
	}
	defer body.Close()

	opps, err := unmarshalJSONL[domain.Opportunity](body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load opportunities %s: %w", p, err)
	}
	return opps, nil
}

// ListSimulations returns the directories of archived simulations, for the
// day of at.
func (a *Archiver) ListSimulations(ctx context.Context, at time.Time) ([]string, error) {
	infos, err := a.reader.List(ctx, "simulations/"+at.UTC().Format("2006/01/02")+"/")
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, info := range infos {
		if path.Base(info.Path) == summaryFile {
			dirs = append(dirs, path.Dir(info.Path))
		}
	}
	return dirs, nil
}

func simulationDir(id string, at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return path.Join("simulations", at.UTC().Format("2006/01/02"), id)
}

// marshalJSONL writes one compact JSON value per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func unmarshalJSONL[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	var out []T
	for {
		var rec T
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("jsonl decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
