package detection

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a frame carries no pixels
var ErrEmptyFrame = errors.New("empty frame")

//go:embed coco.names
var cocoNames string

// NetConfig describes the network to load
type NetConfig struct {
	ModelPath string
	// NamesPath is a newline separated class list; empty uses the bundled COCO names
	NamesPath    string
	InputSize    int
	NMSThreshold float64
}

// NetProvider implements YOLO inference over an ONNX export using the OpenCV DNN module
type NetProvider struct {
	net          gocv.Net
	classNames   []string
	inputSize    int
	nmsThreshold float64
	device       Device
	mu           sync.Mutex
}

// NewNetProvider loads the network and binds it to the backend of device
func NewNetProvider(cfg NetConfig, device Device) (*NetProvider, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.45
	}

	classNames, err := loadClassNames(cfg.NamesPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}

	switch device.Kind {
	case DeviceCUDA:
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	default:
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	return &NetProvider{
		net:          net,
		classNames:   classNames,
		inputSize:    cfg.InputSize,
		nmsThreshold: cfg.NMSThreshold,
		device:       device,
	}, nil
}

// Infer runs the network on frame and returns detections at or above confidence,
// after per-class non-maximum suppression. Track fields are left unset.
func (np *NetProvider) Infer(frame gocv.Mat, confidence float64) ([]Detection, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	np.mu.Lock()
	defer np.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(np.inputSize, np.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	np.net.SetInput(blob, "")

	output := np.net.Forward("")
	defer output.Close()

	// YOLOv8/v11 exports produce [1, 4+classes, anchors]
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("%w: shape %v", ErrUnexpectedOutput, sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("could not read network output: %w", err)
	}

	scaleX := float64(frame.Cols()) / float64(np.inputSize)
	scaleY := float64(frame.Rows()) / float64(np.inputSize)
	candidates, err := decodeYOLO(data, sizes[1], sizes[2], scaleX, scaleY, confidence)
	if err != nil {
		return nil, err
	}
	kept := suppress(candidates, np.nmsThreshold)

	detections := make([]Detection, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, Detection{
			Box:        c.box.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows())),
			ClassID:    c.classID,
			ClassName:  np.className(c.classID),
			Confidence: float64(c.score),
		})
	}
	return detections, nil
}

// smokeTest performs a quick inference to verify the backend really works
func (np *NetProvider) smokeTest() (err error) {
	testFrame := gocv.NewMatWithSize(np.inputSize, np.inputSize, gocv.MatTypeCV8UC3)
	defer testFrame.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("test inference panicked: %v", r)
		}
	}()
	_, err = np.Infer(testFrame, 0.99)
	return err
}

// Close releases the network and any device memory it holds
func (np *NetProvider) Close() error {
	np.mu.Lock()
	defer np.mu.Unlock()
	return np.net.Close()
}

func (np *NetProvider) className(classID int) string {
	if classID >= 0 && classID < len(np.classNames) {
		return np.classNames[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

func loadClassNames(path string) ([]string, error) {
	content := cocoNames
	if path != "" {
		namesBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read class names: %w", err)
		}
		content = string(namesBytes)
	}

	var names []string
	for _, line := range strings.Split(content, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
