// Package dataset loads the HuBMAP metadata CSVs and whole-slide images,
// and provides the patient-grouped fold partition used for cross-validation.
// All tiles of one slide share a fold, so no slide ever contributes to both
// the training and validation side of the same split.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/TianyiFranklinWang/HubMap/internal/models"
)

// LoadTileRecords reads the tile metadata CSV. The file must carry a header
// naming at least "tile_name" and the fold column. The slide identifier is
// the tile-name prefix before the first underscore.
func LoadTileRecords(path, foldColumn string) ([]models.TileRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile metadata %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse tile metadata %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("tile metadata %s has no data rows", path)
	}

	nameIdx, foldIdx := -1, -1
	for i, col := range rows[0] {
		switch strings.TrimSpace(col) {
		case "tile_name":
			nameIdx = i
		case foldColumn:
			foldIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("tile metadata %s is missing the tile_name column", path)
	}
	if foldIdx < 0 {
		return nil, fmt.Errorf("tile metadata %s is missing the %q fold column", path, foldColumn)
	}

	records := make([]models.TileRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := strings.TrimSpace(row[nameIdx])
		fold, err := strconv.Atoi(strings.TrimSpace(row[foldIdx]))
		if err != nil {
			return nil, fmt.Errorf("tile %s has non-integer fold value %q", name, row[foldIdx])
		}
		records = append(records, models.TileRecord{
			TileName: name,
			Slide:    slideOf(name),
			Fold:     fold,
		})
	}

	return records, nil
}

// slideOf extracts the slide identifier from a tile name.
func slideOf(tileName string) string {
	if i := strings.Index(tileName, "_"); i >= 0 {
		return tileName[:i]
	}
	return tileName
}

// Folds returns the distinct fold indices present in the records, ascending.
func Folds(records []models.TileRecord) []int {
	seen := map[int]bool{}
	for _, rec := range records {
		seen[rec.Fold] = true
	}
	folds := make([]int, 0, len(seen))
	for fold := range seen {
		folds = append(folds, fold)
	}
	sort.Ints(folds)
	return folds
}

// Split partitions the records into the training and validation side of one
// fold. Validation holds every tile assigned to the fold, training the rest.
func Split(records []models.TileRecord, fold int) (train, val []models.TileRecord) {
	for _, rec := range records {
		if rec.Fold == fold {
			val = append(val, rec)
		} else {
			train = append(train, rec)
		}
	}
	return train, val
}

// ValidationSlides returns the distinct slide identifiers of the validation
// records, in first-seen order.
func ValidationSlides(val []models.TileRecord) []string {
	seen := map[string]bool{}
	slides := []string{}
	for _, rec := range val {
		if !seen[rec.Slide] {
			seen[rec.Slide] = true
			slides = append(slides, rec.Slide)
		}
	}
	return slides
}

// LoadSlideInfo reads the dataset-information CSV mapping each slide to its
// full-resolution pixel dimensions. Image file extensions are stripped from
// the identifier.
func LoadSlideInfo(path string) (map[string]models.SlideInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slide info %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse slide info %s: %w", path, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("slide info %s is empty", path)
	}

	fileIdx, widthIdx, heightIdx := -1, -1, -1
	for i, col := range rows[0] {
		switch strings.TrimSpace(col) {
		case "image_file":
			fileIdx = i
		case "width_pixels":
			widthIdx = i
		case "height_pixels":
			heightIdx = i
		}
	}
	if fileIdx < 0 || widthIdx < 0 || heightIdx < 0 {
		return nil, fmt.Errorf("slide info %s is missing image_file/width_pixels/height_pixels columns", path)
	}

	infos := make(map[string]models.SlideInfo, len(rows)-1)
	for _, row := range rows[1:] {
		id := strings.TrimSpace(row[fileIdx])
		if i := strings.LastIndex(id, "."); i > 0 {
			id = id[:i]
		}
		width, err := strconv.Atoi(strings.TrimSpace(row[widthIdx]))
		if err != nil {
			return nil, fmt.Errorf("slide %s has non-integer width %q", id, row[widthIdx])
		}
		height, err := strconv.Atoi(strings.TrimSpace(row[heightIdx]))
		if err != nil {
			return nil, fmt.Errorf("slide %s has non-integer height %q", id, row[heightIdx])
		}
		infos[id] = models.SlideInfo{ID: id, WidthPixels: width, HeightPixels: height}
	}

	return infos, nil
}

// LoadRLEs reads the ground-truth CSV mapping slide identifiers to their
// run-length encodings.
func LoadRLEs(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ground truth %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ground truth %s: %w", path, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("ground truth %s is empty", path)
	}

	rles := make(map[string]string, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		rles[strings.TrimSpace(row[0])] = row[1]
	}

	return rles, nil
}
