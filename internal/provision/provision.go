// Package provision creates and removes child accounts. Creating a child
// touches three records: the auth identity, the child profile, and the
// parent's roster entry. A failure partway through must not leave an
// orphaned login behind, so the identity is created first and compensated
// (deleted) if the rest cannot be completed.
package provision

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/store"
)

// ErrEmailTaken mirrors the store error so callers need not import store.
var ErrEmailTaken = store.ErrEmailTaken

// ErrChildNotFound is returned when the roster entry does not exist or
// belongs to a different parent.
var ErrChildNotFound = errors.New("child not found")

const (
	secretLength  = 12
	secretCharset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// ChildDetails are the attributes a parent supplies when adding a child.
type ChildDetails struct {
	Name    string
	Email   string
	Gender  string
	Age     int
	Hobbies []string
}

// Result is returned on successful provisioning. Password is the generated
// initial secret, surfaced exactly once for the parent to hand to the child.
type Result struct {
	Profile  *model.Profile
	Child    *model.Child
	Password string
}

type Provisioner struct {
	identities *store.IdentityStore
	profiles   *store.ProfileStore
	children   *store.ChildStore
	sessions   *store.SessionStore
	logger     *slog.Logger
}

func New(is *store.IdentityStore, ps *store.ProfileStore, cs *store.ChildStore, ss *store.SessionStore, logger *slog.Logger) *Provisioner {
	return &Provisioner{identities: is, profiles: ps, children: cs, sessions: ss, logger: logger}
}

// AddChild provisions a child account for parentID: a fresh identity with a
// generated secret, a child profile starting at zero points, and the
// parent's roster entry. An email collision surfaces as ErrEmailTaken with
// nothing created; any later failure deletes the identity again.
func (p *Provisioner) AddChild(parentID int64, details ChildDetails) (*Result, error) {
	if details.Name == "" || details.Email == "" {
		return nil, errors.New("name and email are required")
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	identity, err := p.identities.Create(details.Email, string(hash))
	if err != nil {
		return nil, err
	}

	age := details.Age
	profile, err := p.profiles.Create(identity.ID, model.RoleChild, details.Name, details.Gender, &age, "", &parentID)
	if err != nil {
		p.compensate(identity.ID, 0)
		return nil, fmt.Errorf("create child profile: %w", err)
	}

	child, err := p.children.Create(parentID, profile.ID, details.Name, details.Email, details.Hobbies, secret)
	if err != nil {
		p.compensate(identity.ID, profile.ID)
		return nil, fmt.Errorf("create roster entry: %w", err)
	}

	p.logger.Info("child provisioned", "parent_id", parentID, "profile_id", profile.ID)
	return &Result{Profile: profile, Child: child, Password: secret}, nil
}

// compensate undoes a partial provisioning. Errors here are logged, not
// returned: the caller's error is the original failure.
func (p *Provisioner) compensate(identityID, profileID int64) {
	if profileID != 0 {
		if err := p.profiles.Delete(profileID); err != nil {
			p.logger.Error("cleanup profile after failed provisioning", "profile_id", profileID, "error", err)
		}
	}
	if err := p.identities.Delete(identityID); err != nil {
		p.logger.Error("cleanup identity after failed provisioning", "identity_id", identityID, "error", err)
	}
}

// RemoveChild deletes the roster entry, then cascades best-effort to the
// child's sessions, profile, and identity.
func (p *Provisioner) RemoveChild(parentID, childID int64) error {
	child, err := p.children.GetByID(childID)
	if err != nil {
		return err
	}
	if child == nil || child.ParentID != parentID {
		return ErrChildNotFound
	}

	if err := p.children.Delete(child.ID); err != nil {
		return err
	}

	profile, err := p.profiles.GetByID(child.ProfileID)
	if err != nil || profile == nil {
		p.logger.Warn("child profile missing during removal", "profile_id", child.ProfileID, "error", err)
		return nil
	}
	if err := p.sessions.DeleteForProfile(profile.ID); err != nil {
		p.logger.Error("delete child sessions", "profile_id", profile.ID, "error", err)
	}
	if err := p.profiles.Delete(profile.ID); err != nil {
		p.logger.Error("delete child profile", "profile_id", profile.ID, "error", err)
		return nil
	}
	if err := p.identities.Delete(profile.IdentityID); err != nil {
		p.logger.Error("delete child identity", "identity_id", profile.IdentityID, "error", err)
	}
	return nil
}

// GenerateSecret returns a random initial password from an alphabet without
// lookalike characters. Each position is drawn with rand.Int so the
// distribution over the alphabet is uniform.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	alphabet := big.NewInt(int64(len(secretCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		buf[i] = secretCharset[n.Int64()]
	}
	return string(buf), nil
}
