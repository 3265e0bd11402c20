package visibility

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Snapshot is the archived view of one pipeline run, raw text included
type Snapshot struct {
	ResponseID model.ResponseID `json:"response_id"`
	BrandName  string           `json:"brand_name"`
	RawText    string           `json:"raw_text"`
	Outcome    *Outcome         `json:"outcome"`
	ArchivedAt time.Time        `json:"archived_at"`
}

func snapshotKey(id model.ResponseID) string {
	return string(id) + ".json"
}

// archive saves the snapshot when an archive is configured. Failures are only logged.
// A rerun overwrites the previous snapshot.
func (u *UseCase) archive(ctx context.Context, req *model.AnalysisRequest, outcome *Outcome) {
	if u.stores.Archive == nil || outcome == nil {
		return
	}

	if err := u.saveSnapshot(ctx, &Snapshot{
		ResponseID: req.ResponseID,
		BrandName:  req.BrandName,
		RawText:    req.RawText,
		Outcome:    outcome,
		ArchivedAt: u.now().UTC(),
	}); err != nil {
		logging.From(ctx).Warn("failed to archive snapshot", "error", err)
	}
}

func (u *UseCase) saveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal snapshot", goerr.V("response_id", snapshot.ResponseID))
	}

	// a writer closed after its context is cancelled discards the object
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer, err := u.stores.Archive.Put(ctx, snapshotKey(snapshot.ResponseID))
	if err != nil {
		return goerr.Wrap(err, "failed to create archive writer")
	}

	if _, err := writer.Write(data); err != nil {
		cancel()
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write snapshot", goerr.V("response_id", snapshot.ResponseID))
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close archive writer")
	}
	return nil
}

// Archived loads the snapshot of one response from the archive
func (u *UseCase) Archived(ctx context.Context, id model.ResponseID) (*Snapshot, error) {
	if u.stores.Archive == nil {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "archive is not set")
	}

	reader, err := u.stores.Archive.Get(ctx, snapshotKey(id))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read snapshot", goerr.V("response_id", id))
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal snapshot", goerr.V("response_id", id))
	}
	return &snapshot, nil
}
