package workflow

import (
	"context"

	"mediaflow/internal/fileutil"
	langpkg "mediaflow/internal/language"
	"mediaflow/internal/modelload"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/retry"
	"mediaflow/internal/services"
)

// input returns the artifact the previous stage produced for item.
func (o *Orchestrator) input(item pipeline.WorkItem, stage pipeline.Stage) string {
	if path := item.Artifact(stage); path != "" {
		return path
	}
	return o.gate.Path(item.Key, stage)
}

func (o *Orchestrator) fetchWorker(ctx context.Context, item pipeline.WorkItem, dest string) (string, error) {
	return retry.DoValue(ctx, o.retry, "fetch "+item.Key, func(ctx context.Context) (string, error) {
		return o.fetcher.Fetch(ctx, item.Source, dest)
	})
}

func (o *Orchestrator) convertWorker(ctx context.Context, item pipeline.WorkItem, dest string) (string, error) {
	return o.converter.Convert(ctx, o.input(item, pipeline.StageFetch), dest)
}

func (o *Orchestrator) transcribeWorker(handle *modelload.Handle[pipeline.Transcriber]) pipeline.Worker {
	return func(ctx context.Context, item pipeline.WorkItem, dest string) (string, error) {
		if handle == nil {
			return "", services.Wrap(services.ErrModelLoad, "transcribe", "", "model not loaded", nil)
		}
		audio := o.input(item, pipeline.StageConvert)
		segments, err := modelload.Invoke(ctx, handle, func(ctx context.Context, t pipeline.Transcriber) ([]pipeline.Segment, error) {
			return t.Transcribe(ctx, audio)
		})
		if err != nil {
			return "", err
		}
		transcript := pipeline.Transcript{
			Key:       item.Key,
			Source:    item.Source,
			Engine:    handle.Name(),
			Tier:      string(handle.Tier()),
			Language:  langpkg.ToISO2(o.opts.Language),
			Segments:  segments,
			CreatedAt: o.now().UTC(),
		}
		if transcript.Segments == nil {
			transcript.Segments = []pipeline.Segment{}
		}
		if err := fileutil.WriteJSON(dest, transcript); err != nil {
			return "", services.Wrap(services.ErrTranscription, "transcribe", "write transcript", dest, err)
		}
		return dest, nil
	}
}

func (o *Orchestrator) postProcessWorker(ctx context.Context, item pipeline.WorkItem, dest string) (string, error) {
	var transcript pipeline.Transcript
	if err := fileutil.ReadJSON(o.input(item, pipeline.StageTranscribe), &transcript); err != nil {
		return "", services.Wrap(services.ErrPostProcess, "postprocess", "read transcript", item.Key, err)
	}
	artifact, err := o.post.Process(ctx, transcript)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteJSON(dest, artifact); err != nil {
		return "", services.Wrap(services.ErrPostProcess, "postprocess", "write artifact", dest, err)
	}
	return dest, nil
}

func (o *Orchestrator) persistWorker(ctx context.Context, item pipeline.WorkItem, dest string) (string, error) {
	var artifact pipeline.Artifact
	if err := fileutil.ReadJSON(o.input(item, pipeline.StagePostProcess), &artifact); err != nil {
		return "", services.Wrap(services.ErrPersist, "persist", "read artifact", item.Key, err)
	}
	if err := o.persister.Save(ctx, artifact, dest); err != nil {
		return "", err
	}
	return dest, nil
}
