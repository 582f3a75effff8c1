package navigation

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingDestination   = errors.New("no destination selected")
	ErrMissingUserLocation  = errors.New("user location unknown")
	ErrNavigationInProgress = errors.New("navigation already in progress")
	ErrNetwork              = errors.New("directions request failed")
	ErrRouteUnavailable     = errors.New("no route found")
	ErrSensorUnavailable    = errors.New("sensor unavailable")
)

// ProviderError is a non-2xx answer from the directions provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("directions provider returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("directions provider returned status %d", e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return ErrNetwork
}

func (e *ProviderError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// classifyFetchError makes sure every fetch failure lands in the taxonomy.
func classifyFetchError(err error) error {
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrRouteUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// UserMessage turns an error into text that can be shown to a visitor.
func UserMessage(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "The selected location is not valid."
	case errors.Is(err, ErrMissingDestination):
		return "No destination selected. Please select a building or company first."
	case errors.Is(err, ErrMissingUserLocation):
		return "Unable to get your location. Please allow location access."
	case errors.Is(err, ErrNavigationInProgress):
		return "Navigation is already running. End it before choosing a new destination."
	case errors.As(err, &pe) && pe.IsAuth():
		return "The directions service refused the request. Please ask at the reception desk for directions."
	case errors.As(err, &pe) && pe.IsRateLimited():
		return "Too many route requests right now. Please wait a moment and try again."
	case errors.Is(err, ErrRouteUnavailable):
		return "No walking route could be found to this destination."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the directions service. Check your connection and try again."
	case errors.Is(err, ErrSensorUnavailable):
		return "Location or compass access is unavailable on this device."
	}
	return "Something went wrong, please try again."
}
