// Package volio loads and saves images and slice-sequence volumes.
//
// Single images are read from PNG, JPEG or WEBP files and written as 16 bit
// grayscale PNG or JPEG. Volumes are represented on disk as a directory of
// numbered slice images stacked along the z axis in ascending numeric
// filename order.
package volio

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"tvdenoise/internal/models"
	"tvdenoise/pkg/normalize"
)

// ErrInvalidAxis reports an axis name outside x, y and z.
var ErrInvalidAxis = errors.New("volio: axis must be x, y, or z")

// Axis selects the direction along which a slice is taken from a volume.
type Axis int

const (
	// AxisX slices across the width, producing depth by height images.
	AxisX Axis = iota
	// AxisY slices across the height, producing width by depth images.
	AxisY
	// AxisZ slices across the depth, producing width by height images.
	AxisZ
)

// ParseAxis converts an axis name into an Axis, accepting either case.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidAxis, s)
	}
}

// String returns the lower-case axis name.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// LoadImage reads a single image file and converts it to normalized
// intensities. Grayscale sources keep their full bit depth; color sources
// use the red channel of the 16 bit RGBA representation.
func LoadImage(path string) (*models.Image2D, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %v", path, err)
	}

	return imageToFloat(img), nil
}

// imageToFloat converts a decoded image to a normalized intensity image.
func imageToFloat(img image.Image) *models.Image2D {
	switch v := img.(type) {
	case *image.Gray:
		return normalize.FromGray(v)
	case *image.Gray16:
		return normalize.FromGray16(v)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := models.NewImage2D(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result.Data[y*width+x] = float64(r) / 65535.0
		}
	}
	return result
}

// SaveImagePNG writes the image as a 16 bit grayscale PNG.
func SaveImagePNG(path string, img *models.Image2D) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, normalize.ToGray16(img))
}

// SaveImageJPEG writes the image as a grayscale JPEG at quality 90.
func SaveImageJPEG(path string, img *models.Image2D) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, normalize.ToGray16(img), &jpeg.Options{Quality: 90})
}

// LoadVolume reads every image in a directory and stacks them into a volume.
// Files are ordered by the number embedded in their name so that slice_2
// sorts before slice_10. All slices must share the same dimensions.
//
// Parameters:
//   - dir: directory containing the slice images
//
// Returns:
//   - *models.Image3D: the stacked volume
//   - error: non-nil when the directory is unreadable, holds no images, or
//     the slice dimensions are inconsistent
func LoadVolume(dir string) (*models.Image3D, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".png" || ext == ".jpg" || ext == ".jpeg" || ext == ".webp" {
			imageFiles = append(imageFiles, entry.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	// Numeric sort keeps the anatomical slice order regardless of zero
	// padding in the filenames.
	sort.Slice(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var vol *models.Image3D
	for z, filename := range imageFiles {
		slice, err := LoadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load slice %s: %v", filename, err)
		}

		if vol == nil {
			vol = models.NewImage3D(slice.Width, slice.Height, len(imageFiles))
		} else if slice.Width != vol.Width || slice.Height != vol.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d: %w",
				filename, slice.Width, slice.Height, vol.Width, vol.Height,
				models.ErrShapeMismatch)
		}

		copy(vol.Data[z*vol.Width*vol.Height:], slice.Data)
	}
	return vol, nil
}

// extractNumber extracts the numeric part from a filename.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// SaveVolume writes the volume as a directory of numbered PNG slices taken
// along the z axis.
func SaveVolume(dir string, vol *models.Image3D) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	plane := vol.Width * vol.Height
	for z := 0; z < vol.Depth; z++ {
		slice := &models.Image2D{
			Data:   vol.Data[z*plane : (z+1)*plane],
			Width:  vol.Width,
			Height: vol.Height,
		}
		filename := filepath.Join(dir, fmt.Sprintf("slice_%03d.png", z))
		if err := SaveImagePNG(filename, slice); err != nil {
			return fmt.Errorf("failed to save slice %d: %v", z, err)
		}
	}
	return nil
}

// ExtractSlice extracts a 2-D slice from the volume along the given axis.
//
// Parameters:
//   - vol: source volume
//   - axis: direction perpendicular to the extracted plane
//   - position: slice index along the axis
//
// Returns:
//   - *models.Image2D: the extracted plane
//   - error: non-nil when the position lies outside the volume
func ExtractSlice(vol *models.Image3D, axis Axis, position int) (*models.Image2D, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative, got %d", position)
	}

	plane := vol.Width * vol.Height

	switch axis {
	case AxisX:
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		out := models.NewImage2D(vol.Depth, vol.Height)
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				out.Data[y*vol.Depth+z] = vol.Data[z*plane+y*vol.Width+position]
			}
		}
		return out, nil

	case AxisY:
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		out := models.NewImage2D(vol.Width, vol.Depth)
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				out.Data[z*vol.Width+x] = vol.Data[z*plane+position*vol.Width+x]
			}
		}
		return out, nil

	case AxisZ:
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		out := models.NewImage2D(vol.Width, vol.Height)
		copy(out.Data, vol.Data[position*plane:(position+1)*plane])
		return out, nil

	default:
		return nil, fmt.Errorf("%w: got axis %d", ErrInvalidAxis, int(axis))
	}
}

// ExtractRegion copies a rectangular subvolume.
func ExtractRegion(vol *models.Image3D, startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.Image3D, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > vol.Width || startY+sizeY > vol.Height || startZ+sizeZ > vol.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := models.NewImage3D(sizeX, sizeY, sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				region.Data[z*sizeX*sizeY+y*sizeX+x] =
					vol.Data[(startZ+z)*vol.Width*vol.Height+(startY+y)*vol.Width+(startX+x)]
			}
		}
	}
	return region, nil
}

// SaveSliceSequence extracts and saves every slice along the given axis as
// numbered PNG files in the output directory.
func SaveSliceSequence(dir string, vol *models.Image3D, axis Axis) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case AxisX:
		maxPos = vol.Width
	case AxisY:
		maxPos = vol.Height
	case AxisZ:
		maxPos = vol.Depth
	default:
		return fmt.Errorf("%w: got axis %d", ErrInvalidAxis, int(axis))
	}

	for pos := 0; pos < maxPos; pos++ {
		slice, err := ExtractSlice(vol, axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(dir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SaveImagePNG(filename, slice); err != nil {
			return err
		}
	}
	return nil
}
