package worker

// Stage names shared between graph definitions and handlers.
const (
	StageMetadataExtract  = "metadata_extract"
	StageThumbnails       = "thumbnail_generate"
	StageCommitExtraction = "commit_extraction"
	StageCommitMetadata   = "commit_asset_metadata"
	StageFaceDetectEmbed  = "face_detect_embed"
	StageObjectDetect     = "object_detect"
	StageSceneClassify    = "scene_classify"
	StageClusterFaces     = "cluster_faces"
	StageVideoProbe       = "video_probe_metadata"
	StageVideoThumbnail   = "video_frame_thumbnail"
)

// Graph names.
const (
	GraphImage = "image"
	GraphVideo = "video"
)

// StageDef is one node of a pipeline graph. A stage runs once every
// dependency has succeeded; stages with no dependencies start the run.
type StageDef struct {
	Name      string
	Lane      string
	DependsOn []string
}

// Graph is an explicit DAG of stages.
type Graph struct {
	Name   string
	Stages []StageDef
}

// Roots returns the stages with no dependencies.
func (g *Graph) Roots() []StageDef {
	var roots []StageDef
	for _, s := range g.Stages {
		if len(s.DependsOn) == 0 {
			roots = append(roots, s)
		}
	}
	return roots
}

// Dependents returns the stages that list name as a dependency.
func (g *Graph) Dependents(name string) []StageDef {
	var deps []StageDef
	for _, s := range g.Stages {
		for _, d := range s.DependsOn {
			if d == name {
				deps = append(deps, s)
				break
			}
		}
	}
	return deps
}

// StageNames returns every stage name in definition order.
func (g *Graph) StageNames() []string {
	names := make([]string, len(g.Stages))
	for i, s := range g.Stages {
		names[i] = s.Name
	}
	return names
}

// Stage looks up a stage definition by name.
func (g *Graph) Stage(name string) (StageDef, bool) {
	for _, s := range g.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageDef{}, false
}

// ImageGraph is the processing pipeline for still images. Extraction
// and thumbnails fan out immediately; the intelligence stages wait for
// the committed metadata; clustering follows face embedding.
func ImageGraph() *Graph {
	return &Graph{
		Name: GraphImage,
		Stages: []StageDef{
			{Name: StageMetadataExtract, Lane: LaneDefault},
			{Name: StageThumbnails, Lane: LaneThumbnails},
			{Name: StageCommitExtraction, Lane: LaneDefault, DependsOn: []string{StageMetadataExtract, StageThumbnails}},
			{Name: StageCommitMetadata, Lane: LaneDefault, DependsOn: []string{StageCommitExtraction}},
			{Name: StageFaceDetectEmbed, Lane: LaneML, DependsOn: []string{StageCommitMetadata}},
			{Name: StageObjectDetect, Lane: LaneML, DependsOn: []string{StageCommitMetadata}},
			{Name: StageSceneClassify, Lane: LaneML, DependsOn: []string{StageCommitMetadata}},
			{Name: StageClusterFaces, Lane: LaneML, DependsOn: []string{StageFaceDetectEmbed}},
		},
	}
}

// VideoGraph is the processing pipeline for videos. No visual
// intelligence stages run on video.
func VideoGraph() *Graph {
	return &Graph{
		Name: GraphVideo,
		Stages: []StageDef{
			{Name: StageVideoProbe, Lane: LaneDefault},
			{Name: StageVideoThumbnail, Lane: LaneThumbnails, DependsOn: []string{StageVideoProbe}},
			{Name: StageCommitMetadata, Lane: LaneDefault, DependsOn: []string{StageVideoThumbnail}},
		},
	}
}
