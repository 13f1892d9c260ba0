package model

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// Separator joins a preprocessing variant and a model family into a
// composite identifier. Neither name may contain it.
const Separator = "/"

// ValidateName rejects names that are empty or contain Separator. kind is
// used in the error message, e.g. "transform" or "family".
func ValidateName(kind, name string) error {
	if name == "" {
		return errors.NewConfigurationError("ValidateName", fmt.Sprintf("empty %s name", kind))
	}
	if strings.Contains(name, Separator) {
		return errors.NewConfigurationError("ValidateName",
			fmt.Sprintf("%s name %q must not contain %q", kind, name, Separator))
	}
	return nil
}
