package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

const (
	// AttributesFile is the attribute table LoadDir reads from a dataset
	// directory.
	AttributesFile = "attributes.jsonl"
	// ImageColumn, when present in the attribute table, names the image
	// file of each row.
	ImageColumn = "image"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true}

// LoadDir reads a dataset directory: AttributesFile plus one image per row.
// Rows name their image in ImageColumn; without that column the image files
// of dir are paired with rows in lexical order. Zero width or height take
// the size of the first image.
func LoadDir(dir string, width, height int) (*RawDataset, error) {
	f, err := os.Open(filepath.Join(dir, AttributesFile))
	if err != nil {
		return nil, errors.Wrapf(err, "opening attribute table in %s", dir)
	}
	defer f.Close()

	table, err := ReadJSONLines(f)
	if err != nil {
		return nil, err
	}

	paths, err := imagePaths(dir, table)
	if err != nil {
		return nil, err
	}
	if len(paths) != table.Len() {
		return nil, errors.NewDimensionError(fmt.Sprintf("LoadDir(%s)", dir), table.Len(), len(paths), 0)
	}

	imgs, err := LoadImages(paths)
	if err != nil {
		return nil, err
	}
	if len(imgs) > 0 && (width == 0 || height == 0) {
		b := imgs[0].Bounds()
		width, height = b.Dx(), b.Dy()
	}
	if len(imgs) == 0 {
		width, height = 1, 1
	}
	tensor, err := FromImages(imgs, width, height)
	if err != nil {
		return nil, err
	}
	return &RawDataset{Images: tensor, Table: table}, nil
}

func imagePaths(dir string, table *Table) ([]string, error) {
	if cells, ok := table.Column(ImageColumn); ok {
		paths := make([]string, len(cells))
		for i, cell := range cells {
			if len(cell) != 1 {
				return nil, errors.NewValueError("LoadDir", fmt.Sprintf("row %d: %q must hold exactly one file name", i, ImageColumn))
			}
			name, ok := cell[0].(string)
			if !ok || name == "" {
				return nil, errors.NewValueError("LoadDir", fmt.Sprintf("row %d: %q is not a file name", i, ImageColumn))
			}
			paths[i] = filepath.Join(dir, name)
		}
		return paths, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
