package pp

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// CompositeID joins a preprocessing variant and a model family into the key
// a trained model is stored under, e.g. "pca/svm". Names containing the
// separator are rejected when the configuration is built, so the result
// always splits back into the same pair.
func CompositeID(variant, family string) string {
	return variant + model.Separator + family
}

// SplitCompositeID is the inverse of CompositeID.
func SplitCompositeID(id string) (variant, family string, err error) {
	parts := strings.Split(id, model.Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.NewConfigurationError("pp.SplitCompositeID",
			fmt.Sprintf("malformed composite id %q, want <variant>%s<family>", id, model.Separator))
	}
	return parts[0], parts[1], nil
}
