package dataset

import (
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// RawDataset is an ordered sequence of samples: image i belongs to row i of
// the attribute table.
type RawDataset struct {
	Images *ImageTensor
	Table  *Table
}

// Len returns the number of samples.
func (d *RawDataset) Len() int {
	if d.Table != nil {
		return d.Table.Len()
	}
	if d.Images != nil {
		return d.Images.N
	}
	return 0
}

// Validate checks that images and table describe the same samples.
func (d *RawDataset) Validate() error {
	if d.Images == nil || d.Table == nil {
		return errors.NewValueError("RawDataset.Validate", "dataset needs both images and an attribute table")
	}
	if d.Images.N != d.Table.Len() {
		return errors.NewDimensionError("RawDataset.Validate", d.Table.Len(), d.Images.N, 0)
	}
	if d.Images.N == 0 {
		return errors.NewModelError("RawDataset.Validate", "empty data", errors.ErrEmptyData)
	}
	return nil
}
