package infra

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

const (
	deviceDumpPath = "/data/local/tmp/portald-view.xml"
	portalTreeURI  = "content://com.droidrun.portal/a11y_tree"
)

// UiSnapshotProvider captures screen content over adb. It prefers the
// portal content provider (faster, richer visibility data) and falls back
// to uiautomator dump. A device without the portal app flips permanently
// to the dump path after the first failed query.
type UiSnapshotProvider struct {
	adb          *Adb
	logger       *zap.Logger
	portalBroken atomic.Bool
}

var _ domain.SnapshotProvider = (*UiSnapshotProvider)(nil)

// NewUiSnapshotProvider returns a provider using the given runner.
func NewUiSnapshotProvider(adb *Adb, logger *zap.Logger) *UiSnapshotProvider {
	return &UiSnapshotProvider{
		adb:    adb,
		logger: logger.With(zap.String("component", "snapshot")),
	}
}

// Capture reads the current screen content. Mid-transition screens return
// domain.ErrSnapshotUnavailable; pollers wait through that.
func (p *UiSnapshotProvider) Capture(ctx context.Context) (*domain.Snapshot, error) {
	if !p.portalBroken.Load() {
		snap, err := p.capturePortal(ctx)
		if err == nil {
			return snap, nil
		}
		if !isTransient(err) {
			p.portalBroken.Store(true)
			p.logger.Info("portal provider unavailable, using uiautomator dump",
				zap.Error(err))
		}
	}
	return p.captureDump(ctx)
}

// capturePortal queries the portal accessibility-tree content provider.
// The provider answers one row whose result column is a JSON document:
//
//	{"screenWidth":1080,"screenHeight":2400,"roots":[{node},...]}
//
// with node fields resourceId, text, className, packageName, bounds,
// clickable, checkable, enabled, visible and children.
func (p *UiSnapshotProvider) capturePortal(ctx context.Context) (*domain.Snapshot, error) {
	out, err := p.adb.Shell(ctx, "content query --uri "+portalTreeURI)
	if err != nil {
		return nil, fmt.Errorf("portal query: %w", err)
	}
	start := strings.IndexByte(out, '{')
	if start < 0 {
		if strings.Contains(out, "No result found") {
			return nil, fmt.Errorf("portal empty result: %w", domain.ErrSnapshotUnavailable)
		}
		return nil, fmt.Errorf("portal query returned no JSON: %q", truncate(out, 120))
	}
	doc := gjson.Parse(out[start:])

	var roots []*domain.UiElement
	rootsVal := doc.Get("roots")
	if !rootsVal.Exists() && doc.IsArray() {
		rootsVal = doc
	}
	rootsVal.ForEach(func(_, node gjson.Result) bool {
		if el := portalNode(node); el != nil {
			roots = append(roots, el)
		}
		return true
	})
	if len(roots) == 0 {
		return nil, fmt.Errorf("portal tree has no roots: %w", domain.ErrSnapshotUnavailable)
	}

	w := int(doc.Get("screenWidth").Int())
	h := int(doc.Get("screenHeight").Int())
	if w == 0 || h == 0 {
		w, h = extentOf(roots)
	}
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("portal tree has no screen extent: %w", domain.ErrSnapshotUnavailable)
	}
	return domain.NewSnapshot(fingerprint(roots), w, h, roots), nil
}

func portalNode(node gjson.Result) *domain.UiElement {
	if !node.IsObject() {
		return nil
	}
	bounds := parseBoundsAny(node.Get("bounds"))
	el := &domain.UiElement{
		Identifier:  node.Get("resourceId").String(),
		Text:        node.Get("text").String(),
		ClassName:   node.Get("className").String(),
		PackageName: node.Get("packageName").String(),
		Bounds:      bounds,
		Clickable:   node.Get("clickable").Bool(),
		Checkable:   node.Get("checkable").Bool(),
		Enabled:     node.Get("enabled").Bool(),
	}
	if vis := node.Get("visible"); vis.Exists() {
		el.Visible = vis.Bool()
	} else {
		el.Visible = bounds.Area() > 0
	}
	node.Get("children").ForEach(func(_, child gjson.Result) bool {
		if c := portalNode(child); c != nil {
			el.Children = append(el.Children, c)
		}
		return true
	})
	return el
}

// uiNode mirrors one <node> of a uiautomator dump. Attributes are the
// stringly booleans the dump emits.
type uiNode struct {
	Text       string   `xml:"text,attr"`
	ResourceID string   `xml:"resource-id,attr"`
	Class      string   `xml:"class,attr"`
	Package    string   `xml:"package,attr"`
	Checkable  string   `xml:"checkable,attr"`
	Clickable  string   `xml:"clickable,attr"`
	Enabled    string   `xml:"enabled,attr"`
	Bounds     string   `xml:"bounds,attr"`
	Nodes      []uiNode `xml:"node"`
}

type uiHierarchy struct {
	XMLName xml.Name `xml:"hierarchy"`
	Nodes   []uiNode `xml:"node"`
}

// captureDump runs uiautomator dump and parses the XML. Dump and cat are
// one shell invocation to save an adb round trip.
func (p *UiSnapshotProvider) captureDump(ctx context.Context) (*domain.Snapshot, error) {
	out, err := p.adb.Shell(ctx,
		fmt.Sprintf("uiautomator dump %s && cat %s", deviceDumpPath, deviceDumpPath))
	if err != nil {
		return nil, fmt.Errorf("uiautomator dump: %w", err)
	}

	// uiautomator refuses mid-transition ("could not get idle state").
	start := strings.Index(out, "<?xml")
	if start < 0 {
		return nil, fmt.Errorf("dump produced no XML (%s): %w",
			truncate(out, 120), domain.ErrSnapshotUnavailable)
	}
	body := out[start:]
	if end := strings.LastIndexByte(body, '>'); end >= 0 {
		body = body[:end+1]
	}

	var hier uiHierarchy
	if err := xml.Unmarshal([]byte(body), &hier); err != nil {
		return nil, fmt.Errorf("parse dump xml: %w", err)
	}

	roots := make([]*domain.UiElement, 0, len(hier.Nodes))
	for i := range hier.Nodes {
		roots = append(roots, dumpNode(&hier.Nodes[i]))
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("dump hierarchy is empty: %w", domain.ErrSnapshotUnavailable)
	}

	w, h := extentOf(roots)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("dump has no screen extent: %w", domain.ErrSnapshotUnavailable)
	}
	return domain.NewSnapshot(fingerprint(roots), w, h, roots), nil
}

func dumpNode(n *uiNode) *domain.UiElement {
	bounds := parseBracketBounds(n.Bounds)
	el := &domain.UiElement{
		Identifier:  n.ResourceID,
		Text:        n.Text,
		ClassName:   n.Class,
		PackageName: n.Package,
		Bounds:      bounds,
		Clickable:   n.Clickable == "true",
		Checkable:   n.Checkable == "true",
		Enabled:     n.Enabled == "true",
		// The dump carries no visibility attribute; zero-area nodes are
		// the off-screen ones.
		Visible: bounds.Area() > 0,
	}
	for i := range n.Nodes {
		el.Children = append(el.Children, dumpNode(&n.Nodes[i]))
	}
	return el
}

var bracketBoundsRe = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// parseBracketBounds parses the dump format "[l,t][r,b]". Unparsable
// bounds become the zero rect, which downstream treats as invisible.
func parseBracketBounds(s string) domain.Rect {
	m := bracketBoundsRe.FindStringSubmatch(s)
	if m == nil {
		return domain.Rect{}
	}
	l, _ := strconv.Atoi(m[1])
	t, _ := strconv.Atoi(m[2])
	r, _ := strconv.Atoi(m[3])
	b, _ := strconv.Atoi(m[4])
	return domain.Rect{Left: l, Top: t, Right: r, Bottom: b}
}

// parseBoundsAny accepts the portal's bounds encodings: an object with
// left/top/right/bottom, the dump bracket string, or "l,t,r,b".
func parseBoundsAny(v gjson.Result) domain.Rect {
	if v.IsObject() {
		return domain.Rect{
			Left:   int(v.Get("left").Int()),
			Top:    int(v.Get("top").Int()),
			Right:  int(v.Get("right").Int()),
			Bottom: int(v.Get("bottom").Int()),
		}
	}
	s := v.String()
	if strings.HasPrefix(s, "[") {
		return parseBracketBounds(s)
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Rect{}
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return domain.Rect{}
		}
		nums[i] = n
	}
	return domain.Rect{Left: nums[0], Top: nums[1], Right: nums[2], Bottom: nums[3]}
}

// fingerprint synthesizes the window identity token. Raw dumps carry no
// window handle, so identity is the set of root windows: package, class
// and bounds of each. Content edits inside a window keep the token;
// a popup adding a root changes it.
func fingerprint(roots []*domain.UiElement) int64 {
	h := fnv.New64a()
	for _, r := range roots {
		h.Write([]byte(r.PackageName))
		h.Write([]byte{0})
		h.Write([]byte(r.ClassName))
		h.Write([]byte{0})
		fmt.Fprintf(h, "%d,%d,%d,%d;", r.Bounds.Left, r.Bounds.Top, r.Bounds.Right, r.Bounds.Bottom)
	}
	return int64(h.Sum64())
}

// extentOf returns the maximum right/bottom edge over the whole forest.
func extentOf(roots []*domain.UiElement) (int, int) {
	var w, h int
	for _, el := range domain.Flatten(roots) {
		if el.Bounds.Right > w {
			w = el.Bounds.Right
		}
		if el.Bounds.Bottom > h {
			h = el.Bounds.Bottom
		}
	}
	return w, h
}

// isTransient reports whether the portal failure is worth retrying on the
// next capture instead of disabling the portal path.
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrSnapshotUnavailable) ||
		errors.Is(err, domain.ErrNoDevice) ||
		strings.Contains(err.Error(), "timed out")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
