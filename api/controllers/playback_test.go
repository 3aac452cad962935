package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/api/middleware"
	"github.com/angelmondragon/playgate/internal/entitlement"
	"github.com/angelmondragon/playgate/internal/playback"
	"github.com/angelmondragon/playgate/internal/sources"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
)

type stubPlaybackService struct {
	descriptor sources.PlaybackDescriptor
	ent        entitlement.Entitlement
	servers    []playback.ServerOption
	err        error

	lastResolve   playback.ResolveInput
	lastRelease   string
	lastEpisodeID *uuid.UUID
	lastDevice    enums.DeviceClass
}

func (s *stubPlaybackService) ResolvePlayback(_ context.Context, in playback.ResolveInput) (sources.PlaybackDescriptor, error) {
	s.lastResolve = in
	return s.descriptor, s.err
}

func (s *stubPlaybackService) ReleasePlayback(_ context.Context, _, _ uuid.UUID, sessionID string) error {
	s.lastRelease = sessionID
	return s.err
}

func (s *stubPlaybackService) CheckEntitlement(_ context.Context, _, _ uuid.UUID, episodeID *uuid.UUID) (entitlement.Entitlement, error) {
	s.lastEpisodeID = episodeID
	return s.ent, s.err
}

func (s *stubPlaybackService) ListServers(_ context.Context, _, _ uuid.UUID, episodeID *uuid.UUID, device enums.DeviceClass) ([]playback.ServerOption, error) {
	s.lastEpisodeID = episodeID
	s.lastDevice = device
	return s.servers, s.err
}

func asViewer(req *http.Request, viewerID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithViewerID(req.Context(), viewerID.String()))
}

func withURLParams(req *http.Request, kv ...string) *http.Request {
	rc := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rc.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestPlaybackResolveSuccess(t *testing.T) {
	viewerID := uuid.New()
	contentID := uuid.New()
	svc := &stubPlaybackService{descriptor: sources.PlaybackDescriptor{
		Kind:        enums.SourceKindHls,
		URL:         "https://cdn.example.com/master.m3u8",
		ServerLabel: "Main",
		Basis:       enums.EntitlementBasisSubscription,
	}}
	payload := []byte(`{"content_id":"` + contentID.String() + `","device":"web","device_session_id":"sess-1"}`)
	req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/playback/resolve", bytes.NewReader(payload)), viewerID)
	rec := httptest.NewRecorder()

	PlaybackResolve(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastResolve.ViewerID != viewerID || svc.lastResolve.ContentID != contentID {
		t.Fatalf("unexpected input %+v", svc.lastResolve)
	}
	var envelope struct {
		Data sources.PlaybackDescriptor `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.URL != "https://cdn.example.com/master.m3u8" || envelope.Data.Basis != enums.EntitlementBasisSubscription {
		t.Fatalf("unexpected descriptor %+v", envelope.Data)
	}
}

func TestPlaybackResolveRejectsBadDevice(t *testing.T) {
	svc := &stubPlaybackService{}
	payload := []byte(`{"content_id":"` + uuid.NewString() + `","device":"tv","device_session_id":"sess-1"}`)
	req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/playback/resolve", bytes.NewReader(payload)), uuid.New())
	rec := httptest.NewRecorder()

	PlaybackResolve(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPlaybackResolveMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   pkgerrors.Code
	}{
		{pkgerrors.New(pkgerrors.CodeNotEntitled, "upgrade").WithDetails(map[string]any{"required_tier": "vip"}), http.StatusForbidden, pkgerrors.CodeNotEntitled},
		{pkgerrors.New(pkgerrors.CodeDeviceLimitExceeded, "too many"), http.StatusConflict, pkgerrors.CodeDeviceLimitExceeded},
		{pkgerrors.New(pkgerrors.CodeNoEligibleSource, "none"), http.StatusUnprocessableEntity, pkgerrors.CodeNoEligibleSource},
		{pkgerrors.New(pkgerrors.CodeUpstreamUnavailable, "db"), http.StatusServiceUnavailable, pkgerrors.CodeUpstreamUnavailable},
	}
	for _, tt := range tests {
		svc := &stubPlaybackService{err: tt.err}
		payload := []byte(`{"content_id":"` + uuid.NewString() + `","device":"mobile","device_session_id":"s"}`)
		req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/playback/resolve", bytes.NewReader(payload)), uuid.New())
		rec := httptest.NewRecorder()
		PlaybackResolve(svc, nil).ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.code, tt.status, rec.Code)
		}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if envelope.Error.Code != string(tt.code) {
			t.Fatalf("expected %s got %s", tt.code, envelope.Error.Code)
		}
	}
}

func TestPlaybackResolveRequiresViewer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/playback/resolve", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	PlaybackResolve(&stubPlaybackService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPlaybackRelease(t *testing.T) {
	svc := &stubPlaybackService{}
	payload := []byte(`{"content_id":"` + uuid.NewString() + `","device_session_id":"sess-9"}`)
	req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/playback/release", bytes.NewReader(payload)), uuid.New())
	rec := httptest.NewRecorder()

	PlaybackRelease(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if svc.lastRelease != "sess-9" {
		t.Fatalf("expected session forwarded, got %q", svc.lastRelease)
	}
}

func TestContentEntitlementWithEpisode(t *testing.T) {
	contentID := uuid.New()
	episodeID := uuid.New()
	svc := &stubPlaybackService{ent: entitlement.Entitlement{Granted: true, Basis: enums.EntitlementBasisFree, GrantedTier: enums.AccessTierFree}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/entitlement?episodeId="+episodeID.String(), nil)
	req = withURLParams(asViewer(req, uuid.New()), "contentId", contentID.String())
	rec := httptest.NewRecorder()

	ContentEntitlement(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastEpisodeID == nil || *svc.lastEpisodeID != episodeID {
		t.Fatalf("expected episode id forwarded")
	}
	var envelope struct {
		Data entitlement.Entitlement `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Granted || envelope.Data.Basis != enums.EntitlementBasisFree {
		t.Fatalf("unexpected entitlement %+v", envelope.Data)
	}
}

func TestContentServersRequiresDevice(t *testing.T) {
	contentID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/servers", nil)
	req = withURLParams(asViewer(req, uuid.New()), "contentId", contentID.String())
	rec := httptest.NewRecorder()

	ContentServers(&stubPlaybackService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestContentServersSuccess(t *testing.T) {
	contentID := uuid.New()
	svc := &stubPlaybackService{servers: []playback.ServerOption{
		{ServerLabel: "Alpha", Kind: enums.SourceKindIframe},
		{ServerLabel: "Beta", Kind: enums.SourceKindMp4, IsDefault: true},
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/servers?device=mobile", nil)
	req = withURLParams(asViewer(req, uuid.New()), "contentId", contentID.String())
	rec := httptest.NewRecorder()

	ContentServers(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastDevice != enums.DeviceClassMobile {
		t.Fatalf("expected mobile device, got %s", svc.lastDevice)
	}
	var envelope struct {
		Data []playback.ServerOption `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 2 || envelope.Data[0].ServerLabel != "Alpha" {
		t.Fatalf("expected servers in configured order, got %+v", envelope.Data)
	}
}
