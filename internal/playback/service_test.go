package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/playgate/internal/catalog"
	"github.com/angelmondragon/playgate/internal/devicesessions"
	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/metrics"
)

var testNow = time.Date(2026, 10, 10, 20, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	contents      map[uuid.UUID]catalog.ContentRecord
	episodes      map[uuid.UUID]catalog.EpisodeRecord
	sources       map[uuid.UUID][]policy.VideoSource
	subscriptions map[uuid.UUID]policy.SubscriptionState
	rentals       map[[2]uuid.UUID]*policy.RentalRecord
	readErr       error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		contents:      map[uuid.UUID]catalog.ContentRecord{},
		episodes:      map[uuid.UUID]catalog.EpisodeRecord{},
		sources:       map[uuid.UUID][]policy.VideoSource{},
		subscriptions: map[uuid.UUID]policy.SubscriptionState{},
		rentals:       map[[2]uuid.UUID]*policy.RentalRecord{},
	}
}

func (f *fakeCatalog) LoadContent(_ context.Context, id uuid.UUID) (catalog.ContentRecord, error) {
	if f.readErr != nil {
		return catalog.ContentRecord{}, f.readErr
	}
	rec, ok := f.contents[id]
	if !ok {
		return catalog.ContentRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}
	return rec, nil
}

func (f *fakeCatalog) LoadEpisode(_ context.Context, id uuid.UUID) (catalog.EpisodeRecord, error) {
	rec, ok := f.episodes[id]
	if !ok {
		return catalog.EpisodeRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "episode not found")
	}
	return rec, nil
}

func (f *fakeCatalog) ListSources(_ context.Context, _ enums.SourceOwnerType, ownerID uuid.UUID) ([]policy.VideoSource, error) {
	return f.sources[ownerID], nil
}

func (f *fakeCatalog) LoadSubscription(_ context.Context, viewerID uuid.UUID) (policy.SubscriptionState, error) {
	return f.subscriptions[viewerID], nil
}

func (f *fakeCatalog) LatestRental(_ context.Context, viewerID, contentID uuid.UUID) (*policy.RentalRecord, error) {
	return f.rentals[[2]uuid.UUID{viewerID, contentID}], nil
}

func (f *fakeCatalog) addContent(p policy.ContentPolicy, srcs ...policy.VideoSource) uuid.UUID {
	id := uuid.New()
	f.contents[id] = catalog.ContentRecord{ID: id, Kind: enums.ContentKindMovie, Title: "Harbor", Policy: p}
	f.sources[id] = srcs
	return id
}

func (f *fakeCatalog) addRental(viewerID, contentID uuid.UUID, maxDevices int) policy.RentalRecord {
	rental := &policy.RentalRecord{
		ID:            uuid.New(),
		ViewerID:      viewerID,
		ContentID:     contentID,
		StartsAt:      testNow.Add(-24 * time.Hour),
		EndsAt:        testNow.Add(36 * time.Hour),
		PaymentStatus: enums.RentalPaymentCompleted,
		MaxDevices:    maxDevices,
	}
	f.rentals[[2]uuid.UUID{viewerID, contentID}] = rental
	return *rental
}

func hlsSource(label string, tier enums.AccessTier) policy.VideoSource {
	return policy.VideoSource{
		ServerLabel:  label,
		RequiredTier: tier,
		Permission:   enums.SourcePermissionWebAndMobile,
		Kind:         enums.SourceKindHls,
		URL:          "https://cdn.example/" + label + "/master.m3u8",
	}
}

func rentTerms(tier enums.AccessTier, maxDevices int) policy.ContentPolicy {
	return policy.ContentPolicy{
		Tier:             tier,
		RentalPrice:      decimal.RequireFromString("2.99"),
		RentalPeriodDays: 2,
		RentalMaxDevices: maxDevices,
	}
}

type harness struct {
	svc     *Service
	catalog *fakeCatalog
	ledger  *devicesessions.MemoryLedger
	reg     *prometheus.Registry
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cat := newFakeCatalog()
	ledger := devicesessions.NewMemoryLedger(time.Hour, func() time.Time { return testNow })
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:  logger.Nop(),
		Catalog: cat,
		Ledger:  ledger,
		Metrics: metrics.NewPlaybackMetrics(reg),
		Now:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return harness{svc: svc, catalog: cat, ledger: ledger, reg: reg}
}

func resolveInput(viewer, content uuid.UUID, session string) ResolveInput {
	return ResolveInput{
		ViewerID:        viewer,
		ContentID:       content,
		Device:          enums.DeviceClassWeb,
		DeviceSessionID: session,
	}
}

func TestResolveFreeContent(t *testing.T) {
	h := newHarness(t)
	content := h.catalog.addContent(policy.ContentPolicy{Tier: enums.AccessTierFree, RentalMaxDevices: 1},
		hlsSource("alpha", enums.AccessTierFree))

	desc, err := h.svc.ResolvePlayback(context.Background(), resolveInput(uuid.New(), content, "s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Basis != enums.EntitlementBasisFree || desc.ServerLabel != "alpha" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
	if desc.RemainingDays != nil {
		t.Fatal("free playback has no remaining days")
	}
	n, err := testutil.GatherAndCount(h.reg, "playgate_playback_resolutions_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one resolution series, got %d", n)
	}
}

func TestResolveRefusesVipExcludedFromPlan(t *testing.T) {
	h := newHarness(t)
	p := rentTerms(enums.AccessTierVip, 1)
	p.ExcludeFromPlan = true
	content := h.catalog.addContent(p, hlsSource("alpha", enums.AccessTierFree))
	viewer := uuid.New()
	expires := testNow.Add(30 * 24 * time.Hour)
	h.catalog.subscriptions[viewer] = policy.SubscriptionState{Active: true, ExpiresAt: &expires}

	_, err := h.svc.ResolvePlayback(context.Background(), resolveInput(viewer, content, "s1"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotEntitled) {
		t.Fatalf("expected not entitled, got %v", err)
	}
	details := pkgerrors.As(err).Details().(map[string]any)
	if details["rentable"] != true || details["plan_eligible"] != false {
		t.Fatalf("unexpected details %#v", details)
	}
}

func TestResolveSubscriptionWinsOverRental(t *testing.T) {
	h := newHarness(t)
	content := h.catalog.addContent(rentTerms(enums.AccessTierVip, 1), hlsSource("alpha", enums.AccessTierVip))
	viewer := uuid.New()
	expires := testNow.Add(24 * time.Hour)
	h.catalog.subscriptions[viewer] = policy.SubscriptionState{Active: true, ExpiresAt: &expires}
	rental := h.catalog.addRental(viewer, content, 1)

	desc, err := h.svc.ResolvePlayback(context.Background(), resolveInput(viewer, content, "s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Basis != enums.EntitlementBasisSubscription {
		t.Fatalf("expected subscription basis, got %s", desc.Basis)
	}
	if active, _ := h.ledger.Active(context.Background(), rental); active != 0 {
		t.Fatalf("subscription playback must not use rental slots, got %d", active)
	}
}

func TestResolveRentalDeviceCap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	content := h.catalog.addContent(rentTerms(enums.AccessTierRent, 2), hlsSource("alpha", enums.AccessTierRent))
	viewer := uuid.New()
	h.catalog.addRental(viewer, content, 2)

	for _, session := range []string{"A", "B"} {
		desc, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, session))
		if err != nil {
			t.Fatalf("session %s: %v", session, err)
		}
		if desc.Basis != enums.EntitlementBasisRental || desc.RemainingDays == nil || *desc.RemainingDays != 2 {
			t.Fatalf("unexpected descriptor %+v", desc)
		}
	}
	if _, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, "C")); !pkgerrors.IsCode(err, pkgerrors.CodeDeviceLimitExceeded) {
		t.Fatalf("expected device limit, got %v", err)
	}
	if err := h.svc.ReleasePlayback(ctx, viewer, content, "A"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, "C")); err != nil {
		t.Fatalf("expected C to be admitted after release, got %v", err)
	}
	if _, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, "B")); err != nil {
		t.Fatalf("re-admission of B must succeed, got %v", err)
	}
}

func TestResolveReleasesSlotWhenNoSourceFits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mobileOnly := hlsSource("mobile", enums.AccessTierRent)
	mobileOnly.Permission = enums.SourcePermissionMobileOnly
	content := h.catalog.addContent(rentTerms(enums.AccessTierRent, 1), mobileOnly)
	viewer := uuid.New()
	rental := h.catalog.addRental(viewer, content, 1)

	_, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, "web-1"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleSource) {
		t.Fatalf("expected no eligible source, got %v", err)
	}
	active, err := h.ledger.Active(ctx, rental)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != 0 {
		t.Fatalf("expected refused playback to give its slot back, got %d active", active)
	}
}

func TestResolveKeepsSlotHeldBeforeFailedResolution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mobileOnly := hlsSource("mobile", enums.AccessTierRent)
	mobileOnly.Permission = enums.SourcePermissionMobileOnly
	content := h.catalog.addContent(rentTerms(enums.AccessTierRent, 1), mobileOnly)
	viewer := uuid.New()
	rental := h.catalog.addRental(viewer, content, 1)

	onPhone := resolveInput(viewer, content, "shared-session")
	onPhone.Device = enums.DeviceClassMobile
	if _, err := h.svc.ResolvePlayback(ctx, onPhone); err != nil {
		t.Fatalf("mobile resolve: %v", err)
	}

	_, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, "shared-session"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleSource) {
		t.Fatalf("expected no eligible source, got %v", err)
	}
	active, err := h.ledger.Active(ctx, rental)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != 1 {
		t.Fatalf("session admitted earlier must keep its slot, got %d active", active)
	}
	if _, err := h.svc.ResolvePlayback(ctx, resolveInput(viewer, content, "other-session")); !pkgerrors.IsCode(err, pkgerrors.CodeDeviceLimitExceeded) {
		t.Fatalf("expected device limit for a second session, got %v", err)
	}
}

func TestResolveNeverLeaksVipSourceToRental(t *testing.T) {
	h := newHarness(t)
	content := h.catalog.addContent(rentTerms(enums.AccessTierRent, 1),
		hlsSource("premium", enums.AccessTierVip),
		hlsSource("standard", enums.AccessTierRent),
	)
	viewer := uuid.New()
	h.catalog.addRental(viewer, content, 1)

	desc, err := h.svc.ResolvePlayback(context.Background(), resolveInput(viewer, content, "s1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.ServerLabel != "standard" {
		t.Fatalf("expected standard source, got %s", desc.ServerLabel)
	}
}

func TestResolveMp4QualityFallback(t *testing.T) {
	h := newHarness(t)
	content := h.catalog.addContent(policy.ContentPolicy{Tier: enums.AccessTierFree, RentalMaxDevices: 1}, policy.VideoSource{
		ServerLabel:  "files",
		RequiredTier: enums.AccessTierFree,
		Permission:   enums.SourcePermissionWebAndMobile,
		Kind:         enums.SourceKindMp4,
		QualityURLs:  map[enums.VideoQuality]string{enums.VideoQuality480p: "https://cdn.example/480.mp4"},
	})
	hint := enums.VideoQuality1080p
	in := resolveInput(uuid.New(), content, "s1")
	in.QualityHint = &hint

	desc, err := h.svc.ResolvePlayback(context.Background(), in)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Quality == nil || *desc.Quality != enums.VideoQuality480p || desc.URL != "https://cdn.example/480.mp4" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
}

func TestResolveEpisodeUsesParentRental(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	series := uuid.New()
	h.catalog.contents[series] = catalog.ContentRecord{ID: series, Kind: enums.ContentKindSeries, Policy: rentTerms(enums.AccessTierRent, 1)}
	episode := uuid.New()
	h.catalog.episodes[episode] = catalog.EpisodeRecord{ID: episode, ContentID: series, SeasonNumber: 1, Number: 1, Policy: rentTerms(enums.AccessTierRent, 1)}
	h.catalog.sources[episode] = []policy.VideoSource{hlsSource("ep", enums.AccessTierRent)}
	viewer := uuid.New()
	h.catalog.addRental(viewer, series, 1)

	in := resolveInput(viewer, series, "s1")
	in.EpisodeID = &episode
	desc, err := h.svc.ResolvePlayback(ctx, in)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.ServerLabel != "ep" {
		t.Fatalf("expected the episode source, got %s", desc.ServerLabel)
	}

	other := resolveInput(viewer, uuid.New(), "s1")
	other.EpisodeID = &episode
	if _, err := h.svc.ResolvePlayback(ctx, other); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for mismatched content, got %v", err)
	}
}

func TestResolveErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.ResolvePlayback(ctx, resolveInput(uuid.New(), uuid.New(), "s1")); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	bad := resolveInput(uuid.New(), uuid.New(), " ")
	bad.Device = "tv"
	_, err := h.svc.ResolvePlayback(ctx, bad)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	details := pkgerrors.As(err).Details().(map[string]string)
	if _, ok := details["device"]; !ok {
		t.Fatalf("expected device detail, got %#v", details)
	}

	h.catalog.readErr = errors.New("connection refused")
	if _, err := h.svc.ResolvePlayback(ctx, resolveInput(uuid.New(), uuid.New(), "s1")); !pkgerrors.IsCode(err, pkgerrors.CodeUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestCheckEntitlementAndListServers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mobileOnly := hlsSource("mobile", enums.AccessTierFree)
	mobileOnly.Permission = enums.SourcePermissionMobileOnly
	content := h.catalog.addContent(rentTerms(enums.AccessTierRent, 1), hlsSource("web", enums.AccessTierFree), mobileOnly)
	viewer := uuid.New()

	ent, err := h.svc.CheckEntitlement(ctx, viewer, content, nil)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ent.Granted {
		t.Fatal("expected no entitlement without a rental")
	}
	if _, err := h.svc.ListServers(ctx, viewer, content, nil, enums.DeviceClassWeb); !pkgerrors.IsCode(err, pkgerrors.CodeNotEntitled) {
		t.Fatalf("expected not entitled, got %v", err)
	}

	h.catalog.addRental(viewer, content, 1)
	ent, err = h.svc.CheckEntitlement(ctx, viewer, content, nil)
	if err != nil || !ent.Granted || ent.Basis != enums.EntitlementBasisRental {
		t.Fatalf("expected rental entitlement, got %+v %v", ent, err)
	}
	servers, err := h.svc.ListServers(ctx, viewer, content, nil, enums.DeviceClassWeb)
	if err != nil {
		t.Fatalf("list servers: %v", err)
	}
	if len(servers) != 1 || servers[0].ServerLabel != "web" {
		t.Fatalf("unexpected servers %+v", servers)
	}
}

func TestReleasePlaybackWithoutRentalIsNoop(t *testing.T) {
	h := newHarness(t)
	if err := h.svc.ReleasePlayback(context.Background(), uuid.New(), uuid.New(), "s1"); err != nil {
		t.Fatalf("expected noop release, got %v", err)
	}
	if err := h.svc.ReleasePlayback(context.Background(), uuid.New(), uuid.New(), ""); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without catalog")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop(), Catalog: newFakeCatalog()}); err == nil {
		t.Fatal("expected error without ledger")
	}
}
