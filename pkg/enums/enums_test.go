package enums

import "testing"

func TestAccessTierCovers(t *testing.T) {
	cases := []struct {
		granted  AccessTier
		required AccessTier
		want     bool
	}{
		{AccessTierFree, AccessTierFree, true},
		{AccessTierFree, AccessTierRent, false},
		{AccessTierRent, AccessTierFree, true},
		{AccessTierRent, AccessTierVip, false},
		{AccessTierVip, AccessTierRent, true},
		{AccessTierVip, AccessTierVip, true},
		{AccessTier("gold"), AccessTierFree, false},
		{AccessTierVip, AccessTier("gold"), false},
	}
	for _, tc := range cases {
		if got := tc.granted.Covers(tc.required); got != tc.want {
			t.Fatalf("%s covers %s: expected %v got %v", tc.granted, tc.required, tc.want, got)
		}
	}
}

func TestSourcePermissionAllows(t *testing.T) {
	if !SourcePermissionWebAndMobile.Allows(DeviceClassMobile) || !SourcePermissionWebAndMobile.Allows(DeviceClassWeb) {
		t.Fatal("web_and_mobile must allow both device classes")
	}
	if SourcePermissionWebOnly.Allows(DeviceClassMobile) {
		t.Fatal("web_only must not allow mobile")
	}
	if SourcePermissionMobileOnly.Allows(DeviceClassWeb) {
		t.Fatal("mobile_only must not allow web")
	}
	if SourcePermissionWebAndMobile.Allows(DeviceClass("tv")) {
		t.Fatal("unknown device must not match")
	}
}

func TestParsers(t *testing.T) {
	if _, err := ParseAccessTier("vip"); err != nil {
		t.Fatalf("parse vip: %v", err)
	}
	if _, err := ParseAccessTier("VIP"); err == nil {
		t.Fatal("expected case-sensitive tier parsing")
	}
	if q, err := ParseVideoQuality("720p"); err != nil || q.Index() != 1 {
		t.Fatalf("unexpected quality parse %v %v", q, err)
	}
	if _, err := ParseSourceKind("dash"); err == nil {
		t.Fatal("expected unknown kind error")
	}
	if _, err := ParseDeviceClass("mobile"); err != nil {
		t.Fatalf("parse device: %v", err)
	}
	if _, err := ParseRentalPaymentStatus("refunded"); err == nil {
		t.Fatal("expected unknown payment status error")
	}
}

func TestSourceKindFallbackOrder(t *testing.T) {
	if !(SourceKindHls.FallbackRank() < SourceKindIframe.FallbackRank() && SourceKindIframe.FallbackRank() < SourceKindMp4.FallbackRank()) {
		t.Fatal("expected hls < iframe < mp4")
	}
}
