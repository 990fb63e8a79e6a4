package handlers

import (
	"encoding/json"
	"time"

	"pixvault/domain/models"
)

// AssetResponse is the public shape of an asset. Metadata fields stay
// empty until the pipeline commits them.
type AssetResponse struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	FileSizeBytes    int64      `json:"file_size_bytes"`
	Width            int        `json:"width,omitempty"`
	Height           int        `json:"height,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds,omitempty"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`
	TimezoneOffset   *int       `json:"timezone_offset,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	City             string     `json:"city,omitempty"`
	Country          string     `json:"country,omitempty"`
	TinyPath         string     `json:"tiny_path,omitempty"`
	ThumbPath        string     `json:"thumb_path,omitempty"`
	PreviewPath      string     `json:"preview_path,omitempty"`
	IsFavorite       bool       `json:"is_favorite"`
	MLProcessedAt    *time.Time `json:"ml_processed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toAssetResponse(a *models.Asset) AssetResponse {
	return AssetResponse{
		ID:               a.ID.String(),
		Type:             string(a.AssetType),
		OriginalFilename: a.OriginalFilename,
		MimeType:         a.MimeType,
		FileSizeBytes:    a.FileSizeBytes,
		Width:            a.Width,
		Height:           a.Height,
		DurationSeconds:  a.DurationSeconds,
		CapturedAt:       a.CapturedAt,
		TimezoneOffset:   a.TimezoneOffset,
		Latitude:         a.Latitude,
		Longitude:        a.Longitude,
		City:             a.City,
		Country:          a.Country,
		TinyPath:         a.TinyPath,
		ThumbPath:        a.ThumbPath,
		PreviewPath:      a.PreviewPath,
		IsFavorite:       a.IsFavorite,
		MLProcessedAt:    a.MLProcessedAt,
		CreatedAt:        a.CreatedAt,
	}
}

func toAssetResponses(assets []models.Asset) []AssetResponse {
	out := make([]AssetResponse, len(assets))
	for i := range assets {
		out[i] = toAssetResponse(&assets[i])
	}
	return out
}

type FaceResponse struct {
	ID            string    `json:"id"`
	AssetID       string    `json:"asset_id"`
	BboxX         float64   `json:"bbox_x"`
	BboxY         float64   `json:"bbox_y"`
	BboxWidth     float64   `json:"bbox_width"`
	BboxHeight    float64   `json:"bbox_height"`
	Confidence    float64   `json:"confidence"`
	Landmarks     []float64 `json:"landmarks,omitempty"`
	PersonID      string    `json:"person_id,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
}

func toFaceResponse(f *models.Face) FaceResponse {
	resp := FaceResponse{
		ID:            f.ID.String(),
		AssetID:       f.AssetID.String(),
		BboxX:         f.BboxX,
		BboxY:         f.BboxY,
		BboxWidth:     f.BboxWidth,
		BboxHeight:    f.BboxHeight,
		Confidence:    f.Confidence,
		ThumbnailPath: f.ThumbnailPath,
	}
	if f.PersonID != nil {
		resp.PersonID = f.PersonID.String()
	}
	if f.Landmarks != "" {
		_ = json.Unmarshal([]byte(f.Landmarks), &resp.Landmarks)
	}
	return resp
}

func toFaceResponses(faces []models.Face) []FaceResponse {
	out := make([]FaceResponse, len(faces))
	for i := range faces {
		out[i] = toFaceResponse(&faces[i])
	}
	return out
}

type PersonResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FaceCount   int    `json:"face_count"`
	CoverFaceID string `json:"cover_face_id,omitempty"`
	IsHidden    bool   `json:"is_hidden"`
	IsFavorite  bool   `json:"is_favorite"`
}

func toPersonResponse(p *models.Person) PersonResponse {
	resp := PersonResponse{
		ID:         p.ID.String(),
		Name:       p.Name,
		FaceCount:  p.FaceCount,
		IsHidden:   p.IsHidden,
		IsFavorite: p.IsFavorite,
	}
	if p.CoverFaceID != nil {
		resp.CoverFaceID = p.CoverFaceID.String()
	}
	return resp
}

func toPersonResponses(persons []models.Person) []PersonResponse {
	out := make([]PersonResponse, len(persons))
	for i := range persons {
		out[i] = toPersonResponse(&persons[i])
	}
	return out
}

type TagResponse struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	BboxX      *float64 `json:"bbox_x,omitempty"`
	BboxY      *float64 `json:"bbox_y,omitempty"`
	BboxWidth  *float64 `json:"bbox_width,omitempty"`
	BboxHeight *float64 `json:"bbox_height,omitempty"`
}

func toTagResponses(tags []models.AssetTag) []TagResponse {
	out := make([]TagResponse, len(tags))
	for i, t := range tags {
		out[i] = TagResponse{
			Name:       t.Tag.Name,
			Type:       string(t.Tag.TagType),
			Confidence: t.Confidence,
			Source:     t.Source,
			BboxX:      t.BboxX,
			BboxY:      t.BboxY,
			BboxWidth:  t.BboxWidth,
			BboxHeight: t.BboxHeight,
		}
	}
	return out
}
