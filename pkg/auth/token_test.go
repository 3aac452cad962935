package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/playgate/pkg/config"
	"github.com/angelmondragon/playgate/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "playgate",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	viewerID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{ViewerID: viewerID, Role: enums.ViewerRoleViewer})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.ViewerID != viewerID {
		t.Fatalf("expected viewer_id %s, got %s", viewerID, claims.ViewerID)
	}
	if claims.Role != enums.ViewerRoleViewer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Subject != viewerID.String() {
		t.Fatalf("expected subject to carry the viewer id, got %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be generated")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{ViewerID: uuid.New(), Role: enums.ViewerRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{ViewerID: uuid.New(), Role: enums.ViewerRoleViewer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		ViewerID: uuid.New(),
		Role:     enums.ViewerRole("owner"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.ViewerRoleViewer}); err == nil {
		t.Fatal("expected missing viewer id error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{ViewerID: uuid.New(), Role: "root"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{ViewerID: uuid.New(), Role: enums.ViewerRoleViewer}); err == nil {
		t.Fatal("expected missing secret error")
	}
}
