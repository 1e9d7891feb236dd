package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/postsmith/postsmith/internal/errors"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/post"
	"github.com/postsmith/postsmith/internal/ratelimit"
	servermw "github.com/postsmith/postsmith/internal/server/middleware"
)

// maxRequestBytes bounds JSON and form bodies on the generation routes.
const maxRequestBytes = 64 << 10

// Generator produces a post. post.Service satisfies it.
type Generator interface {
	Generate(ctx context.Context, req post.GenerationRequest) *post.GenerationResult
}

// GenerateHandler serves the JSON and HTML generation routes.
type GenerateHandler struct {
	generator Generator
	validator *post.Validator
	pages     *Pages
	window    time.Duration
}

// NewGenerateHandler wires the generation routes. window is the rate-limit
// window quoted in rejection messages.
func NewGenerateHandler(generator Generator, validator *post.Validator, pages *Pages, window time.Duration) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		validator: validator,
		pages:     pages,
		window:    window,
	}
}

// API handles POST /api/generate-post.
func (h *GenerateHandler) API(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req post.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err,
			"Request body must be a JSON object with a topic"))
		return
	}

	req, err := h.validator.Validate(req)
	if err != nil {
		h.logRejected(r, req, err)
		respondWithError(w, r, validationEnvelope(err))
		return
	}

	req.ClientKey = servermw.ClientKey(r.Context())
	result := h.generator.Generate(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// APIRateLimited answers a rejected API request with a RATE_LIMITED envelope.
func (h *GenerateHandler) APIRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	respondWithError(w, r, apperrors.NewRateLimitedError(d.Limit, h.window, d.RetryAfter))
}

// Form handles GET /generate-post.
func (h *GenerateHandler) Form(w http.ResponseWriter, r *http.Request) {
	h.pages.RenderGenerate(w, r, http.StatusOK, h.pages.generateData(post.DefaultPlatform))
}

// Submit handles POST /generate-post.
func (h *GenerateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	if err := r.ParseForm(); err != nil {
		data := h.pages.generateData(post.DefaultPlatform)
		data.Error = "Invalid form submission"
		h.pages.RenderGenerate(w, r, http.StatusBadRequest, data)
		return
	}

	// Unknown platforms fall back to the default rather than failing the form.
	platform, ok := post.ParsePlatform(r.PostFormValue("platform"))
	if !ok {
		platform = post.DefaultPlatform
	}

	req, err := h.validator.Validate(post.GenerationRequest{
		Topic:    r.PostFormValue("topic"),
		Platform: platform,
	})

	data := h.pages.generateData(req.Platform)
	data.Topic = req.Topic

	if err != nil {
		h.logRejected(r, req, err)
		data.Error = err.Error()
		var verr *post.ValidationError
		if errors.As(err, &verr) {
			data.FieldErrors = verr.Fields
		}
		h.pages.RenderGenerate(w, r, http.StatusBadRequest, data)
		return
	}

	req.ClientKey = servermw.ClientKey(r.Context())
	result := h.generator.Generate(r.Context(), req)

	data.Submitted = true
	data.GeneratedPost = result.Post()
	data.Error = result.Message()
	data.ProcessingTime = formatSeconds(result.ProcessingTime)
	h.pages.RenderGenerate(w, r, http.StatusOK, data)
}

// FormRateLimited re-renders the form with the rate-limit message.
func (h *GenerateHandler) FormRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	_ = r.ParseForm()

	platform, ok := post.ParsePlatform(r.PostFormValue("platform"))
	if !ok {
		platform = post.DefaultPlatform
	}

	data := h.pages.generateData(platform)
	data.Topic = r.PostFormValue("topic")
	data.Error = apperrors.RateLimitMessage(d.Limit, h.window)
	h.pages.RenderGenerate(w, r, http.StatusTooManyRequests, data)
}

func validationEnvelope(err error) error {
	var verr *post.ValidationError
	if errors.As(err, &verr) {
		return apperrors.NewValidationError(verr.Error(), verr.Fields)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

func (h *GenerateHandler) logRejected(r *http.Request, req post.GenerationRequest, err error) {
	observability.Info("generation request rejected",
		zap.String("client", servermw.ClientKey(r.Context())),
		zap.String("platform", string(req.Platform)),
		zap.String("topic", post.TruncateTopic(req.Topic, 50)),
		zap.String("request_id", servermw.GetRequestID(r.Context())),
		zap.String("reason", err.Error()),
	)
}
