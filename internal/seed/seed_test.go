package seed

import (
	"context"
	"strings"
	"testing"

	"resto/internal/models"
	"resto/internal/store/memory"

	"golang.org/x/crypto/bcrypt"
)

const fixtureYAML = `
tenants:
  - id: t1
    name: La Esquina
    settings:
      taxRateBps: 2100
      currency: ARS
    zones:
      - id: salon
        name: Salon
        color: "#ffcc00"
    tables:
      - id: "1"
        number: "1"
        zoneId: salon
        seats: 4
        qrCode: qr-1
    menu:
      - id: m1
        name: Empanada
        category: Entradas
        priceCents: 500
        available: true
        modifiers:
          - id: picante
            name: Picante
            priceCents: 100
    users:
      - id: u1
        name: Ana
        email: ana@example.com
        role: admin
        password: secret
`

func TestApplyFixture(t *testing.T) {
	fixture, err := Parse(strings.NewReader(fixtureYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := context.Background()
	st := memory.New()

	res, err := Apply(ctx, st, fixture)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Created != 5 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	table, err := st.FindTableByQR(ctx, "qr-1")
	if err != nil {
		t.Fatalf("find table: %v", err)
	}
	if table.TenantID != "t1" || table.ZoneID != "salon" || table.Status != models.TableFree {
		t.Fatalf("unexpected table %+v", table)
	}
	items, err := st.ListMenuItems(ctx, "t1")
	if err != nil || len(items) != 1 || len(items[0].Modifiers) != 1 {
		t.Fatalf("unexpected menu %+v (%v)", items, err)
	}
	user, err := st.FindUserByEmail(ctx, "t1", "ana@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret")) != nil {
		t.Fatalf("expected hashed password")
	}
	tenant, err := st.GetTenant(ctx, "t1")
	if err != nil || !strings.Contains(string(tenant.Settings), `"taxRateBps":2100`) {
		t.Fatalf("unexpected tenant settings %s (%v)", tenant.Settings, err)
	}

	res, err = Apply(ctx, st, fixture)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if res.Created != 0 || res.Skipped != 5 {
		t.Fatalf("expected everything skipped, got %+v", res)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{name: "unknown field", yaml: "tenants:\n  - id: t1\n    colour: red\n"},
		{name: "missing id", yaml: "tenants:\n  - name: x\n"},
		{name: "missing password", yaml: "tenants:\n  - id: t1\n    users:\n      - email: a@b.c\n"},
		{name: "bad role", yaml: "tenants:\n  - id: t1\n    users:\n      - email: a@b.c\n        password: x\n        role: chef\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
