package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/logger"
	"github.com/Conceptual-Machines/nearfield-gen/internal/metrics"
	"github.com/Conceptual-Machines/nearfield-gen/internal/output"
	"github.com/Conceptual-Machines/nearfield-gen/internal/sampler"
	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/Conceptual-Machines/nearfield-gen/internal/synth"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/rand"
)

// GenerationHandler serves the range schema, parameter samples and single preview images.
type GenerationHandler struct {
	cfg      *config.Config
	flat     schema.Flat
	integer  map[string]bool
	recorder metrics.Recorder
}

func NewGenerationHandler(cfg *config.Config, recorder metrics.Recorder) (*GenerationHandler, error) {
	flat, err := cfg.Ranges.Flatten()
	if err != nil {
		return nil, fmt.Errorf("flattening ranges: %w", err)
	}
	integer := make(map[string]bool, len(cfg.IntegerParams))
	for _, name := range cfg.IntegerParams {
		integer[name] = true
	}
	return &GenerationHandler{cfg: cfg, flat: flat, integer: integer, recorder: recorder}, nil
}

type RangeResponse struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Integer bool    `json:"integer,omitempty"`
}

type SchemaResponse struct {
	Parameters     []RangeResponse `json:"parameters"`
	SamplingMethod string          `json:"sampling_method"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	DCOffset       float64         `json:"dc_offset"`
}

// GetSchema returns the flattened parameter ranges in sampling order.
func (h *GenerationHandler) GetSchema(c *gin.Context) {
	params := make([]RangeResponse, len(h.flat))
	for i, b := range h.flat {
		params[i] = RangeResponse{Name: b.Name, Min: b.Min, Max: b.Max, Integer: h.integer[b.Name]}
	}
	c.JSON(http.StatusOK, SchemaResponse{
		Parameters:     params,
		SamplingMethod: h.cfg.SamplingMethod,
		Width:          h.cfg.CanvasWidth,
		Height:         h.cfg.CanvasHeight,
		DCOffset:       h.cfg.DCOffset,
	})
}

type SamplesRequest struct {
	Count  int     `json:"count" binding:"required,min=1"`
	Method string  `json:"method"` // LHS (default) or random
	Seed   *uint64 `json:"seed"`
}

type SamplesResponse struct {
	Method  string                `json:"method"`
	Samples []schema.ParameterSet `json:"samples"`
}

// Samples draws parameter sets without rendering them.
func (h *GenerationHandler) Samples(c *gin.Context) {
	var req SamplesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count > maxSamplesPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("count must be at most %d", maxSamplesPerRequest)})
		return
	}

	method := req.Method
	if method == "" {
		method = h.cfg.SamplingMethod
	}
	opts := []sampler.Option{sampler.WithIntegerParams(h.cfg.IntegerParams...)}
	if req.Seed != nil {
		opts = append(opts, sampler.WithSeed(*req.Seed))
	}
	smp, err := sampler.New(method, opts...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sets, err := smp.Sample(h.cfg.Ranges, req.Count)
	if err != nil {
		logger.Error("Sampling failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SamplesResponse{Method: string(smp.Method()), Samples: sets})
}

type ImageRequest struct {
	// Parameters must name every flattened parameter; omitted entirely, one set is
	// drawn at random from the configured ranges.
	Parameters map[string]float64 `json:"parameters"`
	Seed       *uint64            `json:"seed"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Format     string             `json:"format"` // tiff (default) or png
}

// Image renders one preview image and returns it as 16-bit TIFF or PNG. The seed and the
// parameters used are echoed in response headers.
func (h *GenerationHandler) Image(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := req.Format
	if format == "" {
		format = formatTIFF
	}
	if format != formatTIFF && format != formatPNG {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format. Allowed: tiff, png"})
		return
	}

	canvas := h.cfg.Canvas()
	if req.Width != 0 {
		canvas.Width = req.Width
	}
	if req.Height != 0 {
		canvas.Height = req.Height
	}
	if canvas.Width <= 0 || canvas.Height <= 0 || canvas.Width > maxPreviewSide || canvas.Height > maxPreviewSide {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("width and height must be in [1, %d]", maxPreviewSide),
		})
		return
	}

	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}

	ps, err := h.previewParameters(req.Parameters, seed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gen, err := synth.NewGenerator(synth.Options{
		Canvas:   canvas,
		DCOffset: h.cfg.DCOffset,
		Workers:  h.cfg.NoiseWorkers,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	img, err := gen.GenerateWithSeed(ps, seed)
	if h.recorder != nil {
		h.recorder.RecordImage(c.Request.Context(), time.Since(start), err == nil)
	}
	if err != nil {
		if errors.Is(err, synth.ErrInvalidParams) || errors.Is(err, synth.ErrMissingParam) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Preview render failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render image"})
		return
	}

	var buf bytes.Buffer
	contentType := "image/tiff"
	if format == formatPNG {
		contentType = "image/png"
		err = png.Encode(&buf, img)
	} else {
		err = output.EncodeTIFF(&buf, img, output.TIFFOptions{Compress: h.cfg.CompressTIFF})
	}
	if err != nil {
		logger.Error("Preview encode failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode image"})
		return
	}

	if raw, err := ps.MarshalJSON(); err == nil {
		c.Header(paramsHeader, string(raw))
	}
	c.Header(seedHeader, strconv.FormatUint(seed, 10))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *GenerationHandler) previewParameters(values map[string]float64, seed uint64) (schema.ParameterSet, error) {
	if values != nil {
		return schema.FromMap(h.flat, values, h.cfg.IntegerParams...)
	}
	smp, err := sampler.New(string(sampler.MethodRandom),
		sampler.WithSeed(seed),
		sampler.WithIntegerParams(h.cfg.IntegerParams...))
	if err != nil {
		return nil, err
	}
	sets, err := smp.Sample(h.cfg.Ranges, 1)
	if err != nil {
		return nil, err
	}
	return sets[0], nil
}
