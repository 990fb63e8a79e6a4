package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
	"pixvault/domain/services"
	"pixvault/infrastructure/exifmeta"
	"pixvault/infrastructure/geocode"
	"pixvault/infrastructure/inference"
	"pixvault/infrastructure/mediaprobe"
	"pixvault/infrastructure/storage"
	"pixvault/infrastructure/thumbnail"
	"pixvault/infrastructure/vision"
	"pixvault/pkg/logger"
)

// Broadcaster pushes progress events to connected clients.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, messageType string, data map[string]interface{})
}

// PipelineStages implements every stage handler. One instance is
// shared by all lane workers.
type PipelineStages struct {
	assetRepo repositories.AssetRepository
	faceRepo  repositories.FaceRepository
	tagRepo   repositories.TagRepository
	store     storage.Backend
	extractor *exifmeta.Extractor
	thumbs    *thumbnail.Generator
	geocoder  *geocode.Resolver
	prober    *mediaprobe.Prober

	faceDetector    *vision.FaceDetector
	faceEmbedder    *vision.FaceEmbedder
	objectDetector  *vision.ObjectDetector
	sceneClassifier *vision.SceneClassifier

	clusterer services.FaceClusterService
	events    Broadcaster
}

func NewPipelineStages(
	assetRepo repositories.AssetRepository,
	faceRepo repositories.FaceRepository,
	tagRepo repositories.TagRepository,
	store storage.Backend,
	extractor *exifmeta.Extractor,
	thumbs *thumbnail.Generator,
	geocoder *geocode.Resolver,
	prober *mediaprobe.Prober,
	faceDetector *vision.FaceDetector,
	faceEmbedder *vision.FaceEmbedder,
	objectDetector *vision.ObjectDetector,
	sceneClassifier *vision.SceneClassifier,
	clusterer services.FaceClusterService,
	events Broadcaster,
) *PipelineStages {
	return &PipelineStages{
		assetRepo:       assetRepo,
		faceRepo:        faceRepo,
		tagRepo:         tagRepo,
		store:           store,
		extractor:       extractor,
		thumbs:          thumbs,
		geocoder:        geocoder,
		prober:          prober,
		faceDetector:    faceDetector,
		faceEmbedder:    faceEmbedder,
		objectDetector:  objectDetector,
		sceneClassifier: sceneClassifier,
		clusterer:       clusterer,
		events:          events,
	}
}

// RegisterAll binds every stage handler on the orchestrator.
func (s *PipelineStages) RegisterAll(o *Orchestrator) {
	o.Register(StageMetadataExtract, s.MetadataExtract)
	o.Register(StageThumbnails, s.ThumbnailGenerate)
	o.Register(StageCommitExtraction, s.CommitExtraction)
	o.Register(StageCommitMetadata, s.CommitAssetMetadata)
	o.Register(StageFaceDetectEmbed, s.FaceDetectEmbed)
	o.Register(StageObjectDetect, s.ObjectDetect)
	o.Register(StageSceneClassify, s.SceneClassify)
	o.Register(StageClusterFaces, s.ClusterFaces)
	o.Register(StageVideoProbe, s.VideoProbe)
	o.Register(StageVideoThumbnail, s.VideoThumbnail)
}

// Stage result payloads, exchanged through the run state.

type metadataResult struct {
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	CapturedAt     *time.Time `json:"capturedAt,omitempty"`
	TimezoneOffset *int       `json:"timezoneOffset,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	ExifJSON       string     `json:"exifJson,omitempty"`
}

type thumbResult struct {
	Tiny    string `json:"tiny"`
	Thumb   string `json:"thumb"`
	Preview string `json:"preview"`
}

type probeResult struct {
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	DurationSeconds float64    `json:"durationSeconds"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

func (s *PipelineStages) loadAsset(ctx context.Context, tc *TaskContext) (*models.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, tc.Task.AssetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", tc.Task.AssetID, err)
	}
	return asset, nil
}

func (s *PipelineStages) loadOriginal(ctx context.Context, asset *models.Asset) ([]byte, error) {
	data, err := s.store.Read(ctx, asset.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("read original: %w", err)
	}
	return data, nil
}

// MetadataExtract reads EXIF and header metadata from the original.
func (s *PipelineStages) MetadataExtract(ctx context.Context, tc *TaskContext) error {
	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}

	meta := s.extractor.Extract(data)

	result := metadataResult{
		Width:          meta.Width,
		Height:         meta.Height,
		CapturedAt:     meta.CapturedAt,
		TimezoneOffset: meta.TimezoneOffset,
		Latitude:       meta.Latitude,
		Longitude:      meta.Longitude,
	}
	if len(meta.Raw) > 0 {
		raw, err := json.Marshal(meta.Raw)
		if err == nil {
			result.ExifJSON = string(raw)
		}
	}

	return tc.SetResult(ctx, result)
}

// ThumbnailGenerate renders the WebP renditions of the original.
func (s *PipelineStages) ThumbnailGenerate(ctx context.Context, tc *TaskContext) error {
	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}

	res, err := s.thumbs.Generate(ctx, asset.StoragePath, data)
	if err != nil {
		return fmt.Errorf("generate thumbnails: %w", err)
	}

	return tc.SetResult(ctx, thumbResult{
		Tiny:    res.TinyPath,
		Thumb:   res.ThumbPath,
		Preview: res.PreviewPath,
	})
}

// CommitExtraction joins metadata and thumbnail results and resolves
// the geocode when GPS coordinates are present. The merged update is
// handed to the commit stage as a single payload.
func (s *PipelineStages) CommitExtraction(ctx context.Context, tc *TaskContext) error {
	var meta metadataResult
	if _, err := tc.Result(ctx, StageMetadataExtract, &meta); err != nil {
		return err
	}
	var thumbs thumbResult
	if _, err := tc.Result(ctx, StageThumbnails, &thumbs); err != nil {
		return err
	}

	update := repositories.AssetMetadataUpdate{
		CapturedAt:     meta.CapturedAt,
		TimezoneOffset: meta.TimezoneOffset,
		Latitude:       meta.Latitude,
		Longitude:      meta.Longitude,
	}
	if meta.Width > 0 {
		update.Width = &meta.Width
	}
	if meta.Height > 0 {
		update.Height = &meta.Height
	}
	if meta.ExifJSON != "" {
		update.ExifData = &meta.ExifJSON
	}
	if thumbs.Tiny != "" {
		update.TinyPath = &thumbs.Tiny
		update.ThumbPath = &thumbs.Thumb
		update.PreviewPath = &thumbs.Preview
	}

	if meta.Latitude != nil && meta.Longitude != nil && s.geocoder != nil {
		place, err := s.geocoder.Resolve(ctx, *meta.Latitude, *meta.Longitude)
		if err != nil {
			// Transient geocode failures retry the whole stage; the
			// join inputs are cached so that is cheap.
			return fmt.Errorf("geocode: %w", err)
		}
		if place.Resolved {
			update.City = &place.City
			update.Country = &place.Country
		}
	}

	return tc.SetResult(ctx, update)
}

// CommitAssetMetadata persists the merged update on the asset row and
// notifies the owner. For video runs the update is assembled from the
// probe and poster results instead.
func (s *PipelineStages) CommitAssetMetadata(ctx context.Context, tc *TaskContext) error {
	var update repositories.AssetMetadataUpdate

	ok, err := tc.Result(ctx, StageCommitExtraction, &update)
	if err != nil {
		return err
	}
	isVideo := !ok
	if isVideo {
		update, err = s.videoUpdate(ctx, tc)
		if err != nil {
			return err
		}
	}

	if err := s.assetRepo.UpdateMetadata(ctx, tc.Task.AssetID, update); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}

	// Video graphs carry no intelligence stages, so the commit is the
	// terminal point. Stamping here keeps videos out of the stale sweep.
	if isVideo {
		if err := s.assetRepo.MarkMLProcessed(ctx, tc.Task.AssetID, time.Now()); err != nil {
			logger.PipelineError("video_mark", "Could not mark video processed", err, map[string]interface{}{
				"assetId": tc.Task.AssetID.String(),
			})
		}
	}

	s.events.BroadcastToUser(tc.Task.OwnerID, "asset:updated", map[string]interface{}{
		"assetId": tc.Task.AssetID.String(),
		"phase":   "metadata",
	})
	return nil
}

func (s *PipelineStages) videoUpdate(ctx context.Context, tc *TaskContext) (repositories.AssetMetadataUpdate, error) {
	var update repositories.AssetMetadataUpdate

	var probe probeResult
	if ok, err := tc.Result(ctx, StageVideoProbe, &probe); err != nil {
		return update, err
	} else if !ok {
		return update, errors.New("no extraction result available")
	}

	if probe.Width > 0 {
		update.Width = &probe.Width
	}
	if probe.Height > 0 {
		update.Height = &probe.Height
	}
	if probe.DurationSeconds > 0 {
		update.DurationSeconds = &probe.DurationSeconds
	}
	update.CapturedAt = probe.CreatedAt

	var thumbs thumbResult
	if ok, err := tc.Result(ctx, StageVideoThumbnail, &thumbs); err != nil {
		return update, err
	} else if ok && thumbs.Tiny != "" {
		update.TinyPath = &thumbs.Tiny
		update.ThumbPath = &thumbs.Thumb
		update.PreviewPath = &thumbs.Preview
	}

	return update, nil
}

// FaceDetectEmbed detects faces, extracts embeddings and saves face
// rows with crop thumbnails. Reruns are idempotent: assets that
// already carry faces are skipped.
func (s *PipelineStages) FaceDetectEmbed(ctx context.Context, tc *TaskContext) error {
	assetID := tc.Task.AssetID

	if s.faceDetector == nil || s.faceEmbedder == nil {
		logger.Vision("face_disabled", "Face models not configured, skipping", map[string]interface{}{
			"assetId": assetID.String(),
		})
		return s.markMLIfComplete(ctx, tc)
	}

	// Check for existing faces (prevent duplicates on restart)
	existing, _ := s.faceRepo.GetByAsset(ctx, assetID)
	if len(existing) > 0 {
		logger.Vision("face_skip", "Asset already has faces", map[string]interface{}{
			"assetId": assetID.String(),
			"count":   len(existing),
		})
		return s.markMLIfComplete(ctx, tc)
	}

	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode for face detection: %w", err)
	}

	detections, err := s.faceDetector.Detect(ctx, img)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			logger.VisionError("face_degraded", "Face model unavailable, skipping", err, map[string]interface{}{
				"assetId": assetID.String(),
			})
			return s.markMLIfComplete(ctx, tc)
		}
		return err
	}

	faces := make([]*models.Face, 0, len(detections))
	for _, det := range detections {
		face := &models.Face{
			ID:         uuid.New(),
			AssetID:    assetID,
			BboxX:      float64(det.Box.X1),
			BboxY:      float64(det.Box.Y1),
			BboxWidth:  float64(det.Box.X2 - det.Box.X1),
			BboxHeight: float64(det.Box.Y2 - det.Box.Y1),
			Confidence: float64(det.Confidence),
		}

		flat := make([]float32, 0, 10)
		for _, p := range det.Landmarks {
			flat = append(flat, p[0], p[1])
		}
		if lm, err := json.Marshal(flat); err == nil {
			face.Landmarks = string(lm)
		}

		embedding, err := s.faceEmbedder.Embed(ctx, img, det.Box)
		if err != nil {
			// Detection without embedding is still worth keeping.
			logger.VisionError("embed_failed", "Face embedding failed", err, map[string]interface{}{
				"assetId": assetID.String(),
			})
		} else {
			vec := pgvector.NewVector(embedding)
			face.Embedding = &vec
		}

		if crop := s.faceEmbedder.Crop(img, det.Box); crop != nil {
			key := "faces/" + face.ID.String() + ".webp"
			if err := s.thumbs.GenerateFromImage(ctx, key, crop, thumbnail.ThumbSize); err == nil {
				face.ThumbnailPath = key
			}
		}

		faces = append(faces, face)
	}

	if len(faces) > 0 {
		if err := s.faceRepo.CreateBatch(ctx, faces); err != nil {
			return fmt.Errorf("save faces: %w", err)
		}
	}

	s.events.BroadcastToUser(tc.Task.OwnerID, "asset:updated", map[string]interface{}{
		"assetId":   assetID.String(),
		"phase":     "faces",
		"faceCount": len(faces),
	})

	logger.Vision("faces_done", "Face detection completed", map[string]interface{}{
		"assetId": assetID.String(),
		"faces":   len(faces),
	})

	return s.markMLIfComplete(ctx, tc)
}

// ObjectDetect tags the asset with detected objects. Previous model
// tags for the asset are replaced wholesale.
func (s *PipelineStages) ObjectDetect(ctx context.Context, tc *TaskContext) error {
	if s.objectDetector == nil {
		logger.Vision("object_disabled", "Object model not configured, skipping", map[string]interface{}{
			"assetId": tc.Task.AssetID.String(),
		})
		return s.markMLIfComplete(ctx, tc)
	}

	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode for object detection: %w", err)
	}

	objects, err := s.objectDetector.Detect(ctx, img)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			logger.VisionError("object_degraded", "Object model unavailable, skipping", err, map[string]interface{}{
				"assetId": asset.ID.String(),
			})
			return s.markMLIfComplete(ctx, tc)
		}
		return err
	}

	if err := s.tagRepo.DeleteByAssetAndSource(ctx, asset.ID, inference.ModelObjects); err != nil {
		return fmt.Errorf("clear object tags: %w", err)
	}

	for _, obj := range objects {
		tag, err := s.tagRepo.GetOrCreate(ctx, strings.ToLower(obj.Label), models.TagTypeObject)
		if err != nil {
			return fmt.Errorf("tag %q: %w", obj.Label, err)
		}

		x := float64(obj.Box.X1)
		y := float64(obj.Box.Y1)
		w := float64(obj.Box.X2 - obj.Box.X1)
		h := float64(obj.Box.Y2 - obj.Box.Y1)

		created, err := s.tagRepo.UpsertAssetTag(ctx, &models.AssetTag{
			AssetID:    asset.ID,
			TagID:      tag.ID,
			Confidence: float64(obj.Confidence),
			BboxX:      &x,
			BboxY:      &y,
			BboxWidth:  &w,
			BboxHeight: &h,
			Source:     inference.ModelObjects,
		})
		if err != nil {
			return fmt.Errorf("attach tag %q: %w", obj.Label, err)
		}
		if created {
			_ = s.tagRepo.RecountUsage(ctx, tag.ID)
		}
	}

	logger.Vision("objects_done", "Object detection completed", map[string]interface{}{
		"assetId": asset.ID.String(),
		"objects": len(objects),
	})

	return s.markMLIfComplete(ctx, tc)
}

// SceneClassify tags the asset with scene labels.
func (s *PipelineStages) SceneClassify(ctx context.Context, tc *TaskContext) error {
	if s.sceneClassifier == nil {
		logger.Vision("scene_disabled", "Scene model not configured, skipping", map[string]interface{}{
			"assetId": tc.Task.AssetID.String(),
		})
		return s.markMLIfComplete(ctx, tc)
	}

	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode for scene classification: %w", err)
	}

	labels, err := s.sceneClassifier.Classify(ctx, img)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			logger.VisionError("scene_degraded", "Scene model unavailable, skipping", err, map[string]interface{}{
				"assetId": asset.ID.String(),
			})
			return s.markMLIfComplete(ctx, tc)
		}
		return err
	}

	if err := s.tagRepo.DeleteByAssetAndSource(ctx, asset.ID, inference.ModelScenes); err != nil {
		return fmt.Errorf("clear scene tags: %w", err)
	}

	for _, label := range labels {
		tag, err := s.tagRepo.GetOrCreate(ctx, strings.ToLower(label.Label), models.TagTypeScene)
		if err != nil {
			return fmt.Errorf("tag %q: %w", label.Label, err)
		}
		created, err := s.tagRepo.UpsertAssetTag(ctx, &models.AssetTag{
			AssetID:    asset.ID,
			TagID:      tag.ID,
			Confidence: float64(label.Confidence),
			Source:     inference.ModelScenes,
		})
		if err != nil {
			return fmt.Errorf("attach tag %q: %w", label.Label, err)
		}
		if created {
			_ = s.tagRepo.RecountUsage(ctx, tag.ID)
		}
	}

	logger.Vision("scenes_done", "Scene classification completed", map[string]interface{}{
		"assetId": asset.ID.String(),
		"labels":  len(labels),
	})

	return s.markMLIfComplete(ctx, tc)
}

// markMLIfComplete stamps MLProcessedAt once the intelligence stages
// have all finished. The calling stage records its own completion
// before reading the others, so when stages finish concurrently the
// last writer observes every flag and stamps the asset.
func (s *PipelineStages) markMLIfComplete(ctx context.Context, tc *TaskContext) error {
	if err := tc.state.SetStatus(ctx, tc.Task.runKey(), tc.Task.Stage, StatusDone); err != nil {
		return nil
	}
	statuses, err := tc.Statuses(ctx)
	if err != nil {
		return nil
	}

	for _, sibling := range []string{StageFaceDetectEmbed, StageObjectDetect, StageSceneClassify} {
		if statuses[sibling] != StatusDone {
			return nil
		}
	}

	if err := s.assetRepo.MarkMLProcessed(ctx, tc.Task.AssetID, time.Now()); err != nil {
		logger.VisionError("ml_mark", "Could not mark asset processed", err, map[string]interface{}{
			"assetId": tc.Task.AssetID.String(),
		})
	}
	return nil
}

// ClusterFaces triggers a clustering pass for the owner. Concurrent
// passes for the same owner are rejected by the cluster service lock
// and simply skipped here.
func (s *PipelineStages) ClusterFaces(ctx context.Context, tc *TaskContext) error {
	_, err := s.clusterer.ClusterFaces(ctx, tc.Task.OwnerID)
	if errors.Is(err, services.ErrClusteringBusy) {
		logger.Cluster("cluster_busy", "Clustering already running for owner", map[string]interface{}{
			"ownerId": tc.Task.OwnerID.String(),
		})
		return nil
	}
	return err
}

// VideoProbe extracts container metadata through ffprobe.
func (s *PipelineStages) VideoProbe(ctx context.Context, tc *TaskContext) error {
	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}

	path, cleanup, err := tempMediaFile(data, asset.OriginalFilename)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return err
	}

	return tc.SetResult(ctx, probeResult{
		Width:           info.Width,
		Height:          info.Height,
		DurationSeconds: info.DurationSeconds,
		CreatedAt:       info.CreatedAt,
	})
}

// VideoThumbnail renders the poster frame renditions.
func (s *PipelineStages) VideoThumbnail(ctx context.Context, tc *TaskContext) error {
	asset, err := s.loadAsset(ctx, tc)
	if err != nil {
		return err
	}
	data, err := s.loadOriginal(ctx, asset)
	if err != nil {
		return err
	}

	var probe probeResult
	if _, err := tc.Result(ctx, StageVideoProbe, &probe); err != nil {
		return err
	}

	path, cleanup, err := tempMediaFile(data, asset.OriginalFilename)
	if err != nil {
		return err
	}
	defer cleanup()

	// One second in, or the midpoint of very short clips.
	at := 1.0
	if probe.DurationSeconds > 0 && probe.DurationSeconds < 2 {
		at = probe.DurationSeconds / 2
	}

	frame, err := s.prober.PosterFrame(ctx, path, at)
	if err != nil {
		return err
	}

	res, err := s.thumbs.Generate(ctx, asset.StoragePath, frame)
	if err != nil {
		return fmt.Errorf("poster thumbnails: %w", err)
	}

	return tc.SetResult(ctx, thumbResult{
		Tiny:    res.TinyPath,
		Thumb:   res.ThumbPath,
		Preview: res.PreviewPath,
	})
}

// tempMediaFile writes data to a temp file for the ffmpeg tools, which
// only take paths. The extension is kept so format probing works.
func tempMediaFile(data []byte, filename string) (string, func(), error) {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i:]
	}

	f, err := os.CreateTemp("", "pixvault-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp media file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp media file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp media file: %w", err)
	}

	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
