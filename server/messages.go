package server

import (
	"errors"
	"net"
	"net/url"

	"github.com/jrsteele09/swingsense/api"
	"github.com/jrsteele09/swingsense/session"
	"github.com/rs/zerolog/log"
)

// Messages shown to the user. Page specific fallbacks live with their pages.
const (
	msgTransport       = "Unable to reach the server. Please check your connection and try again."
	msgUnexpected      = "An unexpected error occurred. Please try again."
	msgTooManyAttempts = "Too many sign-in attempts. Please wait a minute and try again."
	msgAccountCreated  = "Account created! Please check your email to verify your account."

	msgLoadQuestions   = "Failed to load your questions. Please try again."
	msgSubmitQuestion  = "Failed to submit question. Please try again."
	msgGeneratePlan    = "Failed to generate plan. Please try again."
	msgLoadPlan        = "Failed to load your training plan. Please try again."
	msgFetchResources  = "Failed to fetch resources. Please try again."
	msgLoadProgress    = "Failed to load your progress. Please try again."
	msgRecordProgress  = "Failed to record progress. Please try again."
	msgLoadProfile     = "Failed to load your profile. Please try again."
	msgInvalidPlanForm = "Years played and handicap must be numbers."
)

// userMessage turns an error into text for the page. Transport failures get
// the connectivity message, backend errors their own explanation and
// everything else the page's fallback.
func userMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var validationErr *api.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	if authErr, ok := session.AsAuthError(err); ok {
		return authErr.Message
	}
	if transportErr, ok := api.AsTransportError(err); ok {
		if !transportErr.Cancelled() {
			log.Warn().Err(err).Msg("backend unreachable")
		}
		return msgTransport
	}
	if unreachable(err) {
		log.Warn().Err(err).Msg("service unreachable")
		return msgTransport
	}
	if httpErr, ok := api.AsHTTPError(err); ok && httpErr.Message != "" {
		return httpErr.Message
	}

	log.Err(err).Msg("request failed")
	if fallback != "" {
		return fallback
	}
	return msgUnexpected
}

// unreachable reports a network failure outside the API client, such as the
// identity provider being down.
func unreachable(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
