package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler decides the sign-in outcome for a verified provider profile.
// It runs on every successful identity-provider callback, before a session
// is issued. Side effects are limited to profile sync and link creation.
type Reconciler struct {
	db  *gorm.DB
	log *zap.Logger
}

// New returns a reconciler over the given database handle.
func New(db *gorm.DB, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, log: log}
}

// Reconcile evaluates the decision procedure in order, first match wins:
//
//  1. Missing provider, provider account id, or phone number: allow
//     unchanged. Identity policy cannot be applied without a phone number,
//     so sign-in defers to default provider behavior. Logged and counted.
//  2. A user owns the asserted phone: reject if the provider account is
//     already bound to a different user, otherwise sync newly available
//     profile fields, create the link if it does not exist yet, and allow.
//  3. No phone match but the asserted email belongs to another user:
//     reject, so two phone identities can never share one email.
//  4. Nothing matches: reject, accounts are provisioned by administrators
//     only.
//
// Unexpected database errors never block sign-in; they produce the distinct
// DecisionAllowDegraded outcome, which is logged and metered.
func (r *Reconciler) Reconcile(ctx context.Context, p Profile) Outcome {
	phone := CanonicalPhone(p.PhoneNumber)

	if p.Provider == "" || p.ProviderAccountID == "" || phone == "" {
		// Known gap: the identity-binding policy is skipped whenever the
		// provider omits the phone number. Kept intentionally, see the
		// provider quirk notes in DESIGN.md before changing this.
		r.log.Warn("Sign-in allowed without correlation data",
			zap.String("provider", p.Provider),
			zap.Bool("has_account_id", p.ProviderAccountID != ""),
			zap.Bool("has_phone", phone != ""))
		prometheus.RecordDegradedLogin("missing_correlation")
		return Outcome{Decision: DecisionAllow, Reason: "missing_correlation"}
	}

	var userByPhone model.User
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&userByPhone).Error
	if err == nil {
		return r.reconcileKnownUser(ctx, &userByPhone, phone, p)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return r.degraded("phone_lookup_failed", err, p)
	}

	if p.Email != "" {
		var userByEmail model.User
		err := r.db.WithContext(ctx).Where("email = ?", p.Email).First(&userByEmail).Error
		if err == nil {
			r.log.Info("Sign-in rejected, email belongs to another user",
				zap.String("provider", p.Provider),
				zap.Uint("email_owner_id", userByEmail.ID))
			return Outcome{Decision: DecisionAccountNotLinked, Email: p.Email}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return r.degraded("email_lookup_failed", err, p)
		}
	}

	r.log.Info("Sign-in rejected, no provisioned user for identity",
		zap.String("provider", p.Provider))
	return Outcome{Decision: DecisionUserNotFound, Email: p.Email}
}

// reconcileKnownUser handles the returning-user branch. The link check runs
// before any profile write so a rejected sign-in leaves the user row
// untouched.
func (r *Reconciler) reconcileKnownUser(ctx context.Context, user *model.User, phone string, p Profile) Outcome {
	var link model.ProviderAccount
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", p.Provider, p.ProviderAccountID).
		First(&link).Error

	switch {
	case err == nil && link.UserID != user.ID:
		// The provider account is bound to someone else. Never merge,
		// never reassign the link.
		r.log.Warn("Sign-in rejected, provider account linked to different user",
			zap.String("provider", p.Provider),
			zap.Uint("link_user_id", link.UserID),
			zap.Uint("phone_user_id", user.ID))
		return Outcome{Decision: DecisionAccountNotLinked, Email: p.Email}
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return r.degraded("link_lookup_failed", err, p)
	}

	if out := r.syncProfile(ctx, user, phone, p); out != nil {
		return *out
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		link = model.ProviderAccount{
			UserID:            user.ID,
			Provider:          p.Provider,
			ProviderAccountID: p.ProviderAccountID,
			AccessToken:       p.AccessToken,
			RefreshToken:      p.RefreshToken,
			TokenType:         p.TokenType,
			Scope:             p.Scope,
			ExpiresAt:         p.ExpiresAt,
		}
		if err := r.db.WithContext(ctx).Create(&link).Error; err != nil {
			return r.degraded("link_create_failed", err, p)
		}
		r.log.Info("Provider account linked",
			zap.String("provider", p.Provider),
			zap.Uint("user_id", user.ID))
	}

	return Outcome{Decision: DecisionAllow, User: user}
}

// syncProfile writes newly available profile fields onto the user: email
// only when previously null, phone when changed, address fields when
// present. Name is never synced; administrators own it. Returns a non-nil
// degraded outcome when the write fails.
func (r *Reconciler) syncProfile(ctx context.Context, user *model.User, phone string, p Profile) *Outcome {
	updates := map[string]interface{}{}

	if p.Email != "" && user.Email == nil {
		updates["email"] = p.Email
	}
	if phone != "" && phone != user.PhoneNumber {
		updates["phone_number"] = phone
	}
	if p.Address.Street != "" {
		updates["address_street"] = p.Address.Street
	}
	if p.Address.PostalCode != "" {
		updates["address_postal_code"] = p.Address.PostalCode
	}
	if p.Address.Region != "" {
		updates["address_region"] = p.Address.Region
	}

	if len(updates) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		out := r.degraded("profile_sync_failed", err, p)
		out.User = user
		return &out
	}

	if email, ok := updates["email"].(string); ok {
		user.Email = &email
	}
	if newPhone, ok := updates["phone_number"].(string); ok {
		user.PhoneNumber = newPhone
	}
	return nil
}

// RecordLogin stamps last_login_at and appends the audit event after a
// session was issued. The timestamp is only stamped when it already had a
// value; the first value is set by terms acceptance, so onboarding can tell
// a first login from a returning one.
func (r *Reconciler) RecordLogin(ctx context.Context, user *model.User, provider string) error {
	if user.LastLoginAt != nil {
		now := time.Now()
		if err := r.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
			return err
		}
		user.LastLoginAt = &now
	}

	event := model.LoginEvent{UserID: user.ID, Provider: provider}
	return r.db.WithContext(ctx).Create(&event).Error
}

func (r *Reconciler) degraded(reason string, err error, p Profile) Outcome {
	r.log.Error("Account reconciliation degraded, allowing sign-in",
		zap.String("reason", reason),
		zap.String("provider", p.Provider),
		zap.Error(err))
	prometheus.RecordDegradedLogin(reason)
	return Outcome{Decision: DecisionAllowDegraded, Reason: reason}
}
