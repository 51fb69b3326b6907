package marsclock

import (
	"fmt"

	apperrors "github.com/yanqian/mars-clock/pkg/errors"
)

// Error codes carried by apperrors.AppError values produced in this domain.
const (
	CodeFetchFailed         = "fetch_failed"
	CodeBaselineUnavailable = "baseline_unavailable"
	CodeChannelConfig       = "channel_config"
	CodeDeliveryFailed      = "delivery_failed"
	CodeMissingMode         = "missing_mode"
	CodeInvalidInput        = "invalid_input"
)

func missingMode(raw string) error {
	return apperrors.Wrap(CodeMissingMode, fmt.Sprintf("notification mode %q must be %q or %q", raw, ModeCurrent, ModeDaily), nil)
}

// ChannelConfigError reports a channel that cannot be built from its settings.
func ChannelConfigError(channel, message string) error {
	return apperrors.Wrap(CodeChannelConfig, channel+": "+message, nil)
}

// DeliveryError wraps a failed outbound call made by a channel.
func DeliveryError(channel string, err error) error {
	return apperrors.Wrap(CodeDeliveryFailed, channel+" delivery failed", err)
}

// FetchError wraps a failed TimeSource round-trip.
func FetchError(message string, err error) error {
	return apperrors.Wrap(CodeFetchFailed, message, err)
}
