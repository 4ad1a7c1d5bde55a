package annotation

import (
	"fmt"
	"image"
	"math"
	"regexp"
	"sort"

	"github.com/joeblew999/plat-annotate/internal/style"
)

// Image is an icon or pattern bitmap referenced by name. A nil Bitmap
// refers to an image the style already has.
type Image struct {
	Name   string
	Bitmap image.Image
}

type valueKind int

const (
	numberValue valueKind = iota
	nonNegativeValue
	positiveValue
	opacityValue
	colorValue
	stringValue
	enumValue
	offsetValue
	numberListValue
	stringListValue
	imageValue
	boolValue
	integerValue
)

// propertySpec describes one rendering property of a kind.
type propertySpec struct {
	name       string
	value      valueKind
	enum       []string
	def        any
	dataDriven bool
}

var (
	anchors     = []string{"center", "left", "right", "top", "bottom", "top-left", "top-right", "bottom-left", "bottom-right"}
	alignments  = []string{"map", "viewport", "auto"}
	mapViewport = []string{"map", "viewport"}
	zeroOffset  = []float64{0, 0}
)

func dd(name string, v valueKind, def any) propertySpec {
	return propertySpec{name: name, value: v, def: def, dataDriven: true}
}

func ddEnum(name string, values []string, def string) propertySpec {
	return propertySpec{name: name, value: enumValue, enum: values, def: def, dataDriven: true}
}

func layout(name string, v valueKind, def any) propertySpec {
	return propertySpec{name: name, value: v, def: def}
}

func layoutEnum(name string, values []string, def string) propertySpec {
	return propertySpec{name: name, value: enumValue, enum: values, def: def}
}

// Property names. Data-driven properties vary per annotation; the rest are
// layer-level and take part in the annotation key.
const (
	SymbolPlacement       = "symbol-placement"
	SymbolSpacing         = "symbol-spacing"
	SymbolAvoidEdges      = "symbol-avoid-edges"
	IconSize              = "icon-size"
	IconImage             = "icon-image"
	IconRotate            = "icon-rotate"
	IconOffset            = "icon-offset"
	IconAnchor            = "icon-anchor"
	IconOpacity           = "icon-opacity"
	IconColor             = "icon-color"
	IconHaloColor         = "icon-halo-color"
	IconHaloWidth         = "icon-halo-width"
	IconHaloBlur          = "icon-halo-blur"
	IconAllowOverlap      = "icon-allow-overlap"
	IconIgnorePlacement   = "icon-ignore-placement"
	IconOptional          = "icon-optional"
	IconRotationAlignment = "icon-rotation-alignment"
	IconPitchAlignment    = "icon-pitch-alignment"
	IconTranslate         = "icon-translate"
	IconTranslateAnchor   = "icon-translate-anchor"
	TextField             = "text-field"
	TextFont              = "text-font"
	TextSize              = "text-size"
	TextMaxWidth          = "text-max-width"
	TextLetterSpacing     = "text-letter-spacing"
	TextJustify           = "text-justify"
	TextRadialOffset      = "text-radial-offset"
	TextAnchor            = "text-anchor"
	TextRotate            = "text-rotate"
	TextTransform         = "text-transform"
	TextOffset            = "text-offset"
	TextOpacity           = "text-opacity"
	TextColor             = "text-color"
	TextHaloColor         = "text-halo-color"
	TextHaloWidth         = "text-halo-width"
	TextHaloBlur          = "text-halo-blur"
	TextAllowOverlap      = "text-allow-overlap"
	TextIgnorePlacement   = "text-ignore-placement"
	TextOptional          = "text-optional"
	TextRotationAlignment = "text-rotation-alignment"
	TextPitchAlignment    = "text-pitch-alignment"
	TextTranslate         = "text-translate"
	TextTranslateAnchor   = "text-translate-anchor"
	CircleRadius          = "circle-radius"
	CircleColor           = "circle-color"
	CircleBlur            = "circle-blur"
	CircleOpacity         = "circle-opacity"
	CircleStrokeWidth     = "circle-stroke-width"
	CircleStrokeColor     = "circle-stroke-color"
	CircleStrokeOpacity   = "circle-stroke-opacity"
	CircleTranslate       = "circle-translate"
	CircleTranslateAnchor = "circle-translate-anchor"
	CirclePitchScale      = "circle-pitch-scale"
	CirclePitchAlignment  = "circle-pitch-alignment"
	LineJoin              = "line-join"
	LineOpacity           = "line-opacity"
	LineColor             = "line-color"
	LineWidth             = "line-width"
	LineGapWidth          = "line-gap-width"
	LineOffset            = "line-offset"
	LineBlur              = "line-blur"
	LinePattern           = "line-pattern"
	LineCap               = "line-cap"
	LineMiterLimit        = "line-miter-limit"
	LineRoundLimit        = "line-round-limit"
	LineTranslate         = "line-translate"
	LineTranslateAnchor   = "line-translate-anchor"
	LineDasharray         = "line-dasharray"
	FillOpacity           = "fill-opacity"
	FillColor             = "fill-color"
	FillOutlineColor      = "fill-outline-color"
	FillPattern           = "fill-pattern"
	FillAntialias         = "fill-antialias"
	FillTranslate         = "fill-translate"
	FillTranslateAnchor   = "fill-translate-anchor"
)

var propertyTables = map[Kind][]propertySpec{
	KindSymbol: {
		layoutEnum(SymbolPlacement, []string{"point", "line", "line-center"}, "point"),
		layout(SymbolSpacing, positiveValue, 250.0),
		layout(SymbolAvoidEdges, boolValue, false),
		dd(IconSize, positiveValue, 1.0),
		dd(IconImage, imageValue, nil),
		dd(IconRotate, numberValue, 0.0),
		dd(IconOffset, offsetValue, zeroOffset),
		ddEnum(IconAnchor, anchors, "center"),
		dd(IconOpacity, opacityValue, 1.0),
		dd(IconColor, colorValue, "#000000"),
		dd(IconHaloColor, colorValue, "rgba(0, 0, 0, 0)"),
		dd(IconHaloWidth, nonNegativeValue, 0.0),
		dd(IconHaloBlur, nonNegativeValue, 0.0),
		layout(IconAllowOverlap, boolValue, false),
		layout(IconIgnorePlacement, boolValue, false),
		layout(IconOptional, boolValue, false),
		layoutEnum(IconRotationAlignment, alignments, "auto"),
		layoutEnum(IconPitchAlignment, alignments, "auto"),
		layout(IconTranslate, offsetValue, zeroOffset),
		layoutEnum(IconTranslateAnchor, mapViewport, "map"),
		dd(TextField, stringValue, nil),
		dd(TextFont, stringListValue, []string{"Open Sans Regular", "Arial Unicode MS Regular"}),
		dd(TextSize, positiveValue, 16.0),
		dd(TextMaxWidth, positiveValue, 10.0),
		dd(TextLetterSpacing, numberValue, 0.0),
		ddEnum(TextJustify, []string{"auto", "left", "center", "right"}, "center"),
		dd(TextRadialOffset, numberValue, 0.0),
		ddEnum(TextAnchor, anchors, "center"),
		dd(TextRotate, numberValue, 0.0),
		ddEnum(TextTransform, []string{"none", "uppercase", "lowercase"}, "none"),
		dd(TextOffset, offsetValue, zeroOffset),
		dd(TextOpacity, opacityValue, 1.0),
		dd(TextColor, colorValue, "#000000"),
		dd(TextHaloColor, colorValue, "rgba(0, 0, 0, 0)"),
		dd(TextHaloWidth, nonNegativeValue, 0.0),
		dd(TextHaloBlur, nonNegativeValue, 0.0),
		layout(TextAllowOverlap, boolValue, false),
		layout(TextIgnorePlacement, boolValue, false),
		layout(TextOptional, boolValue, false),
		layoutEnum(TextRotationAlignment, alignments, "auto"),
		layoutEnum(TextPitchAlignment, alignments, "auto"),
		layout(TextTranslate, offsetValue, zeroOffset),
		layoutEnum(TextTranslateAnchor, mapViewport, "map"),
	},
	KindCircle: {
		dd(CircleRadius, nonNegativeValue, 5.0),
		dd(CircleColor, colorValue, "#000000"),
		dd(CircleBlur, numberValue, 0.0),
		dd(CircleOpacity, opacityValue, 1.0),
		dd(CircleStrokeWidth, nonNegativeValue, 0.0),
		dd(CircleStrokeColor, colorValue, "#000000"),
		dd(CircleStrokeOpacity, opacityValue, 1.0),
		layout(CircleTranslate, offsetValue, zeroOffset),
		layoutEnum(CircleTranslateAnchor, mapViewport, "map"),
		layoutEnum(CirclePitchScale, mapViewport, "map"),
		layoutEnum(CirclePitchAlignment, mapViewport, "viewport"),
	},
	KindLine: {
		ddEnum(LineJoin, []string{"bevel", "round", "miter"}, "miter"),
		dd(LineOpacity, opacityValue, 1.0),
		dd(LineColor, colorValue, "#000000"),
		dd(LineWidth, nonNegativeValue, 1.0),
		dd(LineGapWidth, nonNegativeValue, 0.0),
		dd(LineOffset, numberValue, 0.0),
		dd(LineBlur, nonNegativeValue, 0.0),
		dd(LinePattern, imageValue, nil),
		layoutEnum(LineCap, []string{"butt", "round", "square"}, "butt"),
		layout(LineMiterLimit, numberValue, 2.0),
		layout(LineRoundLimit, numberValue, 1.05),
		layout(LineTranslate, offsetValue, zeroOffset),
		layoutEnum(LineTranslateAnchor, mapViewport, "map"),
		layout(LineDasharray, numberListValue, nil),
	},
	KindFill: {
		dd(FillOpacity, opacityValue, 1.0),
		dd(FillColor, colorValue, "#000000"),
		dd(FillOutlineColor, colorValue, nil),
		dd(FillPattern, imageValue, nil),
		layout(FillAntialias, boolValue, true),
		layout(FillTranslate, offsetValue, zeroOffset),
		layoutEnum(FillTranslateAnchor, mapViewport, "map"),
	},
}

var propertyIndex = func() map[Kind]map[string]propertySpec {
	idx := make(map[Kind]map[string]propertySpec, len(propertyTables))
	for k, specs := range propertyTables {
		m := make(map[string]propertySpec, len(specs)+1)
		for _, s := range specs {
			m[s.name] = s
		}
		m[k.SortKeyProperty()] = dd(k.SortKeyProperty(), integerValue, 0.0)
		idx[k] = m
	}
	return idx
}()

func lookupProperty(k Kind, name string) (propertySpec, error) {
	spec, ok := propertyIndex[k][name]
	if !ok {
		return propertySpec{}, fmt.Errorf("%s has no property %q: %w", k, name, ErrUnknownProperty)
	}
	return spec, nil
}

// DataDrivenProperties lists the per-feature properties of a kind, sorted.
func DataDrivenProperties(k Kind) []string {
	var names []string
	for name, spec := range propertyIndex[k] {
		if spec.dataDriven {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LayoutProperties lists the layer-level properties of a kind, sorted.
func LayoutProperties(k Kind) []string {
	var names []string
	for name, spec := range propertyIndex[k] {
		if !spec.dataDriven {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,4}|#[0-9a-fA-F]{6}|#[0-9a-fA-F]{8}|(rgb|rgba|hsl|hsla)\([^)]*\)|[a-zA-Z]+)$`)

// normalize validates v for property s and returns its canonical form.
func (s propertySpec) normalize(v any) (any, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %s: %w", s.name, fmt.Sprintf(format, args...), ErrInvalidProperty)
	}

	switch s.value {
	case numberValue, nonNegativeValue, positiveValue, opacityValue:
		f, ok := style.Number(v)
		if !ok {
			return nil, invalid("want a number, got %T", v)
		}
		switch {
		case s.value == nonNegativeValue && f < 0:
			return nil, invalid("%v is negative", f)
		case s.value == positiveValue && f <= 0:
			return nil, invalid("%v must be greater than 0; omit the property to disable it", f)
		case s.value == opacityValue && (f < 0 || f > 1):
			return nil, invalid("%v is outside [0, 1]", f)
		}
		return f, nil

	case integerValue:
		f, ok := style.Number(v)
		if !ok {
			return nil, invalid("want an integer, got %T", v)
		}
		if f != math.Trunc(f) || f < float64(math.MinInt) || f >= -float64(math.MinInt) {
			return nil, invalid("%v is not an integer in range", f)
		}
		return f, nil

	case colorValue:
		c, ok := v.(string)
		if !ok || !colorPattern.MatchString(c) {
			return nil, invalid("%v is not a color", v)
		}
		return c, nil

	case stringValue:
		str, ok := v.(string)
		if !ok {
			return nil, invalid("want a string, got %T", v)
		}
		return str, nil

	case enumValue:
		str, ok := v.(string)
		if ok {
			for _, e := range s.enum {
				if e == str {
					return str, nil
				}
			}
		}
		return nil, invalid("%v is not one of %v", v, s.enum)

	case offsetValue:
		nums, err := numberList(v)
		if err != nil || len(nums) != 2 {
			return nil, invalid("want two numbers, got %v", v)
		}
		return nums, nil

	case numberListValue:
		nums, err := numberList(v)
		if err != nil {
			return nil, invalid("%v", err)
		}
		for _, n := range nums {
			if n < 0 {
				return nil, invalid("%v is negative", n)
			}
		}
		return nums, nil

	case stringListValue:
		switch list := v.(type) {
		case []string:
			return append([]string(nil), list...), nil
		case []any:
			out := make([]string, len(list))
			for i, e := range list {
				str, ok := e.(string)
				if !ok {
					return nil, invalid("element %d is %T, want string", i, e)
				}
				out[i] = str
			}
			return out, nil
		}
		return nil, invalid("want a list of strings, got %T", v)

	case imageValue:
		switch img := v.(type) {
		case string:
			if img == "" {
				return nil, invalid("empty image name")
			}
			return img, nil
		case Image:
			if img.Name == "" {
				return nil, invalid("empty image name")
			}
			return img, nil
		case *Image:
			if img == nil || img.Name == "" {
				return nil, invalid("empty image name")
			}
			return *img, nil
		}
		return nil, invalid("want an image name or Image, got %T", v)

	case boolValue:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid("want a bool, got %T", v)
		}
		return b, nil
	}
	return nil, invalid("unsupported value")
}

func numberList(v any) ([]float64, error) {
	switch list := v.(type) {
	case []float64:
		return append([]float64(nil), list...), nil
	case [2]float64:
		return []float64{list[0], list[1]}, nil
	case []any:
		out := make([]float64, len(list))
		for i, e := range list {
			f, ok := style.Number(e)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want number", i, e)
			}
			out[i] = f
		}
		return out, nil
	case []int:
		out := make([]float64, len(list))
		for i, e := range list {
			out[i] = float64(e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("want a list of numbers, got %T", v)
}

// featureValue is the form a property takes inside a GeoJSON feature.
func featureValue(v any) any {
	if img, ok := v.(Image); ok {
		return img.Name
	}
	return v
}
