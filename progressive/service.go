package progressive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pif/imagefield"
	"github.com/hazyhaar/pif/kit"
	"github.com/hazyhaar/pif/progressive/event"
)

// Service exposes the upgrader and the markup renderer over HTTP and MCP.
type Service struct {
	cfg    *Config
	up     *Upgrader
	store  *Store            // nil when no store is configured
	media  *imagefield.Store // nil when uploads are disabled
	logger *slog.Logger

	upgrade kit.Endpoint
	render  kit.Endpoint
}

// NewService wires a Service. store may be nil.
func NewService(cfg *Config, up *Upgrader, store *Store, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, up: up, store: store, logger: logger}
	if cfg.Media.Root != "" {
		s.media = imagefield.NewStore(cfg.Media.Root, cfg.Media.URLPrefix)
	}
	s.upgrade = kit.Logging(logger, "upgrade")(s.upgradeEndpoint)
	s.render = kit.Logging(logger, "render")(s.renderEndpoint)
	return s
}

// UpgradeRequest is a document to upgrade.
type UpgradeRequest struct {
	HTML    string `json:"html"`
	BaseURL string `json:"base_url,omitempty"`
	PageID  string `json:"page_id,omitempty"`
}

// UpgradeResponse is the upgraded document and its report.
type UpgradeResponse struct {
	HTML   string        `json:"html"`
	Report *event.Report `json:"report"`
}

// RenderResponse carries placeholder markup.
type RenderResponse struct {
	HTML string `json:"html"`
}

// Upgrade parses req.HTML, runs the upgrader on it and settles it.
func (s *Service) Upgrade(ctx context.Context, req *UpgradeRequest) (*UpgradeResponse, error) {
	resp, err := s.upgrade(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*UpgradeResponse), nil
}

// Render returns the placeholder markup of f.
func (s *Service) Render(ctx context.Context, f *imagefield.Field) (*RenderResponse, error) {
	resp, err := s.render(ctx, f)
	if err != nil {
		return nil, err
	}
	return resp.(*RenderResponse), nil
}

func (s *Service) upgradeEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*UpgradeRequest)
	if int64(len(r.HTML)) > s.cfg.MaxDocument {
		return nil, fmt.Errorf("progressive: document exceeds %d bytes", s.cfg.MaxDocument)
	}
	src := []byte(r.HTML)
	if s.cfg.Sanitize {
		src = Sanitize(src)
	}
	id := r.PageID
	if id == "" {
		id = kit.GetPageID(ctx)
	}
	if id == "" {
		id = NewPageID()
	}

	page, err := ParsePage(id, r.BaseURL, bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	rep, err := s.up.Run(kit.WithPageID(ctx, id), page)
	if err != nil {
		return nil, err
	}
	doc, err := page.HTML()
	if err != nil {
		return nil, err
	}
	return &UpgradeResponse{HTML: string(doc), Report: rep}, nil
}

func (s *Service) renderEndpoint(_ context.Context, req any) (any, error) {
	f := req.(*imagefield.Field)
	out, err := imagefield.Render(*f)
	if err != nil {
		return nil, err
	}
	return &RenderResponse{HTML: string(out)}, nil
}
