package auth

import (
	"fmt"
	"net/url"

	"usersystem/internal/domain"
	"usersystem/internal/mailer"
)

// Email construction lives with the service because the links embed
// action tokens derived from user state. Delivery itself happens on the
// dispatcher goroutine; a failed send is logged there and never reaches
// the caller.

func (s *Service) sendVerificationEmail(user *domain.User) error {
	actionToken, err := IssueActionToken(user, s.cfg.VerifyAccountEmailContext)
	if err != nil {
		return err
	}

	activateURL := fmt.Sprintf("%s%s?token=%s&email=%s",
		s.cfg.FrontendHost,
		s.cfg.VerifyAccountURL,
		url.QueryEscape(actionToken),
		url.QueryEscape(user.Email),
	)

	s.mail.Enqueue(mailer.NewMessage(
		[]string{user.Email},
		fmt.Sprintf("Account Verification - %s", s.cfg.AppName),
		"users/account-verification.html",
		map[string]any{
			"app_name":     s.cfg.AppName,
			"name":         user.Name,
			"activate_url": activateURL,
		},
	))
	return nil
}

func (s *Service) sendVerificationConfirmationEmail(user *domain.User) {
	s.mail.Enqueue(mailer.NewMessage(
		[]string{user.Email},
		fmt.Sprintf("Account Activated - %s", s.cfg.AppName),
		"users/account-verification-confirmation.html",
		map[string]any{
			"app_name": s.cfg.AppName,
			"name":     user.Name,
		},
	))
}

func (s *Service) sendForgotPasswordEmail(user *domain.User) error {
	actionToken, err := IssueActionToken(user, s.cfg.ForgotPasswordEmailContext)
	if err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s%s?token=%s&email=%s",
		s.cfg.FrontendHost,
		s.cfg.ForgotPasswordResetURL,
		url.QueryEscape(actionToken),
		url.QueryEscape(user.Email),
	)

	s.mail.Enqueue(mailer.NewMessage(
		[]string{user.Email},
		fmt.Sprintf("Password Reset - %s", s.cfg.AppName),
		"users/forgot-password-reset.html",
		map[string]any{
			"app_name":  s.cfg.AppName,
			"name":      user.Name,
			"reset_url": resetURL,
		},
	))
	return nil
}

func (s *Service) sendPasswordResetConfirmationEmail(user *domain.User) {
	s.mail.Enqueue(mailer.NewMessage(
		[]string{user.Email},
		fmt.Sprintf("Password Reseted - %s", s.cfg.AppName),
		"users/password-reset.html",
		map[string]any{
			"app_name": s.cfg.AppName,
			"name":     user.Name,
		},
	))
}
