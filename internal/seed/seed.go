// Package seed loads YAML fixtures into a store.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"resto/internal/models"
	"resto/internal/store"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Tenants []Tenant `yaml:"tenants"`
}

type Tenant struct {
	ID       string            `yaml:"id"`
	Name     string            `yaml:"name"`
	Settings map[string]any    `yaml:"settings"`
	Zones    []Zone            `yaml:"zones"`
	Tables   []Table           `yaml:"tables"`
	Menu     []models.MenuItem `yaml:"menu"`
	Users    []User            `yaml:"users"`
}

type Zone struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type Table struct {
	ID     string `yaml:"id"`
	Number string `yaml:"number"`
	ZoneID string `yaml:"zoneId"`
	Seats  int    `yaml:"seats"`
	QRCode string `yaml:"qrCode"`
}

type User struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"passwordHash"`
}

// Target is the subset of store.Store a fixture writes to.
type Target interface {
	CreateTenant(ctx context.Context, tenant models.Tenant) (models.Tenant, error)
	CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error)
	CreateTable(ctx context.Context, table models.Table) (models.Table, error)
	CreateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
}

type Result struct {
	Created int
	Skipped int
}

func Parse(r io.Reader) (Fixture, error) {
	var fixture Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixture); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	for i, tenant := range fixture.Tenants {
		if tenant.ID == "" {
			return Fixture{}, fmt.Errorf("tenant %d: id is required", i)
		}
		for _, user := range tenant.Users {
			if user.Password == "" && user.PasswordHash == "" {
				return Fixture{}, fmt.Errorf("tenant %s user %s: password is required", tenant.ID, user.Email)
			}
			if user.Role != "" && !isRole(user.Role) {
				return Fixture{}, fmt.Errorf("tenant %s user %s: unknown role %s", tenant.ID, user.Email, user.Role)
			}
		}
	}
	return fixture, nil
}

func LoadFile(ctx context.Context, target Target, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	fixture, err := Parse(f)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, target, fixture)
}

// Apply writes every record. Records that already exist are skipped, so a
// fixture can be applied more than once.
func Apply(ctx context.Context, target Target, fixture Fixture) (Result, error) {
	var res Result
	track := func(kind, id string, err error) error {
		switch {
		case err == nil:
			res.Created++
			return nil
		case errors.Is(err, store.ErrDuplicate):
			res.Skipped++
			return nil
		default:
			return fmt.Errorf("seed %s %s: %w", kind, id, err)
		}
	}

	for _, t := range fixture.Tenants {
		settings := json.RawMessage(`{}`)
		if len(t.Settings) > 0 {
			raw, err := json.Marshal(t.Settings)
			if err != nil {
				return res, fmt.Errorf("tenant %s settings: %w", t.ID, err)
			}
			settings = raw
		}
		_, err := target.CreateTenant(ctx, models.Tenant{TenantID: t.ID, Name: t.Name, Active: true, Settings: settings})
		if err := track("tenant", t.ID, err); err != nil {
			return res, err
		}
		for _, z := range t.Zones {
			_, err := target.CreateZone(ctx, models.Zone{ZoneID: z.ID, TenantID: t.ID, Name: z.Name, Color: z.Color})
			if err := track("zone", z.ID, err); err != nil {
				return res, err
			}
		}
		for _, tb := range t.Tables {
			_, err := target.CreateTable(ctx, models.Table{
				TableID:  tb.ID,
				TenantID: t.ID,
				Number:   tb.Number,
				ZoneID:   tb.ZoneID,
				Seats:    tb.Seats,
				QRCode:   tb.QRCode,
			})
			if err := track("table", tb.ID, err); err != nil {
				return res, err
			}
		}
		for _, item := range t.Menu {
			item.TenantID = t.ID
			_, err := target.CreateMenuItem(ctx, item)
			if err := track("menu item", item.MenuItemID, err); err != nil {
				return res, err
			}
		}
		for _, u := range t.Users {
			hash := u.PasswordHash
			if hash == "" {
				generated, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
				if err != nil {
					return res, fmt.Errorf("hash password for %s: %w", u.Email, err)
				}
				hash = string(generated)
			}
			role := u.Role
			if role == "" {
				role = models.RoleWaiter
			}
			_, err := target.CreateUser(ctx, models.User{
				UserID:       u.ID,
				TenantID:     t.ID,
				Name:         u.Name,
				Email:        u.Email,
				Role:         role,
				PasswordHash: hash,
			})
			if err := track("user", u.Email, err); err != nil {
				return res, err
			}
		}
	}
	log.Printf("seed applied created=%d skipped=%d", res.Created, res.Skipped)
	return res, nil
}

func isRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleWaiter, models.RoleKitchen:
		return true
	default:
		return false
	}
}
