package handlers

const (
	// Request limits for the preview server
	maxSamplesPerRequest = 1000
	maxPreviewSide       = 4096

	// Image formats
	formatTIFF = "tiff"
	formatPNG  = "png"

	seedHeader   = "X-Image-Seed"
	paramsHeader = "X-Image-Parameters"
)
