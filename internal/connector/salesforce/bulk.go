package salesforce

import (
	"context"
	"fmt"
	"time"
)

// BulkError describes why one record was rejected.
type BulkError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

// BulkResult is the outcome of one submitted record.
type BulkResult struct {
	Success bool        `json:"success"`
	Created bool        `json:"created"`
	ID      string      `json:"id"`
	Errors  []BulkError `json:"errors"`

	// SubmittedAt is the submission time in epoch milliseconds, set by
	// the caller for auditing.
	SubmittedAt int64 `json:"submittedAt,omitempty"`
}

// JobInfo is a Bulk API v1 job.
type JobInfo struct {
	ID                  string `json:"id"`
	Object              string `json:"object"`
	Operation           string `json:"operation"`
	ExternalIDFieldName string `json:"externalIdFieldName,omitempty"`
	ContentType         string `json:"contentType"`
	State               string `json:"state"`
}

// BatchInfo is a Bulk API v1 batch.
type BatchInfo struct {
	ID                     string `json:"id"`
	JobID                  string `json:"jobId"`
	State                  string `json:"state"`
	StateMessage           string `json:"stateMessage,omitempty"`
	NumberRecordsProcessed int    `json:"numberRecordsProcessed"`
	NumberRecordsFailed    int    `json:"numberRecordsFailed"`
}

const (
	batchQueued       = "Queued"
	batchInProgress   = "InProgress"
	batchCompleted    = "Completed"
	batchFailed       = "Failed"
	batchNotProcessed = "NotProcessed"
)

// BulkUpsert upserts records through a Bulk API v1 job, split into
// batches of Config.BulkBatchSize. Results come back in submission order.
// Individual record failures are reported in the results; a rejected job or
// batch yields *RemoteRequestError.
func (s *Salesforce) BulkUpsert(ctx context.Context, object string, records []map[string]any, externalIDField string) ([]BulkResult, error) {
	if len(records) == 0 {
		return []BulkResult{}, nil
	}
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}
	if externalIDField == "" {
		externalIDField = "Id"
	}

	job, err := s.createJob(ctx, "upsert", object, externalIDField)
	if err != nil {
		return nil, err
	}
	log := s.config.Logger.With().Str("job_id", job.ID).Str("object", object).Logger()

	var chunks [][]map[string]any
	for start := 0; start < len(records); start += s.config.BulkBatchSize {
		end := start + s.config.BulkBatchSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}

	batchIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		batch, err := s.addBatch(ctx, job.ID, chunk)
		if err != nil {
			if cerr := s.closeJob(ctx, job.ID); cerr != nil {
				log.Warn().Err(cerr).Msg("close bulk job after failed batch")
			}
			return nil, err
		}
		batchIDs = append(batchIDs, batch.ID)
	}
	if err := s.closeJob(ctx, job.ID); err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(records))
	for i, batchID := range batchIDs {
		info, err := s.waitBatch(ctx, job.ID, batchID)
		if err != nil {
			return nil, err
		}
		if info.State != batchCompleted {
			return nil, &RemoteRequestError{
				Code:     "BATCH_" + info.State,
				Message:  info.StateMessage,
				Resource: "bulk batch " + batchID,
			}
		}
		batchResults, err := s.batchResults(ctx, job.ID, batchID)
		if err != nil {
			return nil, err
		}
		if len(batchResults) != len(chunks[i]) {
			return nil, fmt.Errorf("bulk batch %s: %d results for %d records", batchID, len(batchResults), len(chunks[i]))
		}
		results = append(results, batchResults...)
	}

	log.Debug().Int("records", len(records)).Int("batches", len(batchIDs)).Msg("bulk upsert completed")
	return results, nil
}

func (s *Salesforce) createJob(ctx context.Context, operation, object, externalIDField string) (*JobInfo, error) {
	req := map[string]any{
		"operation":   operation,
		"object":      object,
		"contentType": "JSON",
	}
	if operation == "upsert" {
		req["externalIdFieldName"] = externalIDField
	}
	resp, err := s.bulk.Post(ctx, s.config.asyncPath("job"), req)
	if err != nil {
		return nil, classify("create bulk job", err)
	}
	var job JobInfo
	if err := resp.JSON(&job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("create bulk job: response carried no job id")
	}
	return &job, nil
}

func (s *Salesforce) addBatch(ctx context.Context, jobID string, records []map[string]any) (*BatchInfo, error) {
	resp, err := s.bulk.Post(ctx, s.config.asyncPath("job", jobID, "batch"), records)
	if err != nil {
		return nil, classify("add bulk batch", err)
	}
	var batch BatchInfo
	if err := resp.JSON(&batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *Salesforce) closeJob(ctx context.Context, jobID string) error {
	_, err := s.bulk.Post(ctx, s.config.asyncPath("job", jobID), map[string]string{"state": "Closed"})
	return classify("close bulk job", err)
}

func (s *Salesforce) waitBatch(ctx context.Context, jobID, batchID string) (*BatchInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		resp, err := s.bulk.Get(ctx, s.config.asyncPath("job", jobID, "batch", batchID), nil)
		if err != nil {
			return nil, classify("bulk batch status", err)
		}
		var info BatchInfo
		if err := resp.JSON(&info); err != nil {
			return nil, err
		}
		switch info.State {
		case batchCompleted, batchFailed, batchNotProcessed:
			return &info, nil
		case batchQueued, batchInProgress:
		default:
			return nil, fmt.Errorf("bulk batch %s: unknown state %q", batchID, info.State)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("bulk batch %s: %w", batchID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Salesforce) batchResults(ctx context.Context, jobID, batchID string) ([]BulkResult, error) {
	resp, err := s.bulk.Get(ctx, s.config.asyncPath("job", jobID, "batch", batchID, "result"), nil)
	if err != nil {
		return nil, classify("bulk batch result", err)
	}
	var results []BulkResult
	if err := resp.JSON(&results); err != nil {
		return nil, err
	}
	return results, nil
}
