package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// ImageFolder enumerates a labeled image corpus laid out as one subdirectory
// per class under a root directory. It only records file paths and labels;
// image content is resolved lazily by the preprocessing pipeline.
type ImageFolder struct {
	samples    []Sample
	classNames []string
	classToIdx map[string]int32
}

// NewImageFolder scans root for class subdirectories and collects every image
// file matching the given extensions (defaults: .jpg, .jpeg, .png, .bmp).
func NewImageFolder(root string, extensions []string) (*ImageFolder, error) {
	if len(extensions) == 0 {
		extensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
	}

	folder := &ImageFolder{
		classToIdx: make(map[string]int32),
	}

	classes, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	var classIdx int32
	for _, classPath := range classes {
		info, err := os.Stat(classPath)
		if err != nil || !info.IsDir() {
			continue
		}

		className := filepath.Base(classPath)
		folder.classNames = append(folder.classNames, className)
		folder.classToIdx[className] = classIdx

		for _, ext := range extensions {
			files, err := filepath.Glob(filepath.Join(classPath, "*"+ext))
			if err != nil {
				continue
			}
			for _, file := range files {
				folder.samples = append(folder.samples, Sample{Path: file, Label: classIdx})
			}
		}

		classIdx++
	}

	if len(folder.samples) == 0 {
		return nil, fmt.Errorf("no images under %s: %w", root, ErrEmptyCorpus)
	}

	return folder, nil
}

// Len returns the number of samples in the corpus.
func (f *ImageFolder) Len() int {
	return len(f.samples)
}

// Samples returns the enumerated samples.
func (f *ImageFolder) Samples() []Sample {
	return f.samples
}

// NumClasses returns the number of classes.
func (f *ImageFolder) NumClasses() int {
	return len(f.classNames)
}

// ClassNames returns the class names in label order.
func (f *ImageFolder) ClassNames() []string {
	return f.classNames
}

// Source builds a sample source over the corpus. Training typically uses a
// looped shuffled source; validation a bounded ordered one.
func (f *ImageFolder) Source(looped, shuffle bool) (*SliceSource, error) {
	return NewSliceSource(f.samples, looped, shuffle)
}

// Split partitions the corpus into train and validation folders by ratio.
func (f *ImageFolder) Split(trainRatio float64, shuffle bool) (*ImageFolder, *ImageFolder) {
	n := len(f.samples)
	trainSize := int(float64(n) * trainRatio)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		rand.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	train := &ImageFolder{classNames: f.classNames, classToIdx: f.classToIdx}
	for _, idx := range indices[:trainSize] {
		train.samples = append(train.samples, f.samples[idx])
	}

	val := &ImageFolder{classNames: f.classNames, classToIdx: f.classToIdx}
	for _, idx := range indices[trainSize:] {
		val.samples = append(val.samples, f.samples[idx])
	}

	return train, val
}

// Subset returns a folder over the first n samples, optionally shuffled
// first. Useful for smoke-testing a pipeline on a fraction of the corpus.
func (f *ImageFolder) Subset(n int, shuffle bool) *ImageFolder {
	if n <= 0 || n > len(f.samples) {
		n = len(f.samples)
	}

	samples := append([]Sample{}, f.samples...)
	if shuffle {
		rand.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})
	}

	return &ImageFolder{
		samples:    samples[:n],
		classNames: f.classNames,
		classToIdx: f.classToIdx,
	}
}

// ClassDistribution returns the per-class sample counts.
func (f *ImageFolder) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for _, sample := range f.samples {
		dist[f.classNames[sample.Label]]++
	}
	return dist
}

func (f *ImageFolder) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ImageFolder: %d samples, %d classes\n", len(f.samples), len(f.classNames)))
	dist := f.ClassDistribution()
	for _, className := range f.classNames {
		sb.WriteString(fmt.Sprintf("  %s: %d samples\n", className, dist[className]))
	}
	return sb.String()
}
