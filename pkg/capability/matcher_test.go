package capability

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/platinummonkey/capload/pkg/typedef"
)

func mustType(t testing.TB, def *typedef.Definition, interfaces ...*typedef.Type) *typedef.Type {
	t.Helper()
	if def.Constructor == "" {
		def.Constructor = typedef.AccessNone
	}
	for _, iface := range interfaces {
		def.Interfaces = append(def.Interfaces, iface.Name())
	}
	typ, err := typedef.NewType(def, nil, "test", interfaces)
	require.NoError(t, err)
	return typ
}

func greeter(pkg string) *typedef.Definition {
	return &typedef.Definition{
		Name:        pkg + ".Greeter",
		Kind:        typedef.KindInterface,
		Annotations: []typedef.Annotation{{Name: "Capability", Values: map[string]string{"version": "1"}}},
		Methods: []typedef.Method{
			{
				Name:    "Greet",
				Returns: "string",
				Params: []typedef.Param{
					{Name: "who", Type: "string", Annotations: []typedef.Annotation{{Name: "NotEmpty"}}},
				},
			},
			{Name: "Close", Returns: "error"},
		},
	}
}

func TestMatcher_MatchesAcrossNamespaces(t *testing.T) {
	m := NewMatcher()
	host := mustType(t, greeter("com.host"))
	plugin := mustType(t, greeter("org.plugin.shaded"))

	assert.NotSame(t, host, plugin)
	assert.True(t, m.Match(plugin, host))
	assert.True(t, m.Match(host, plugin))
	assert.Nil(t, m.Explain(plugin, host))
}

func TestMatcher_IgnoresParameterNames(t *testing.T) {
	def := greeter("com.plugin")
	def.Methods[0].Params[0].Name = "recipient"

	assert.True(t, NewMatcher().Match(mustType(t, def), mustType(t, greeter("com.host"))))
}

func TestMatcher_Mismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *typedef.Definition)
		rule   Rule
	}{
		{
			name:   "class instead of interface",
			mutate: func(d *typedef.Definition) { d.Kind = typedef.KindClass },
			rule:   RuleNotInterface,
		},
		{
			name:   "different simple name",
			mutate: func(d *typedef.Definition) { d.Name = "com.plugin.Welcomer" },
			rule:   RuleSimpleName,
		},
		{
			name:   "missing annotation",
			mutate: func(d *typedef.Definition) { d.Annotations = nil },
			rule:   RuleAnnotations,
		},
		{
			name: "different annotation value",
			mutate: func(d *typedef.Definition) {
				d.Annotations[0].Values["version"] = "2"
			},
			rule: RuleAnnotations,
		},
		{
			name:   "extra method",
			mutate: func(d *typedef.Definition) { d.Methods = append(d.Methods, typedef.Method{Name: "Reset"}) },
			rule:   RuleMethodCount,
		},
		{
			name:   "renamed method",
			mutate: func(d *typedef.Definition) { d.Methods[1].Name = "Shutdown" },
			rule:   RuleMethodName,
		},
		{
			name:   "different return type",
			mutate: func(d *typedef.Definition) { d.Methods[0].Returns = "[]byte" },
			rule:   RuleReturnType,
		},
		{
			name: "extra parameter",
			mutate: func(d *typedef.Definition) {
				d.Methods[0].Params = append(d.Methods[0].Params, typedef.Param{Name: "loud", Type: "bool"})
			},
			rule: RuleParamCount,
		},
		{
			name:   "different parameter type",
			mutate: func(d *typedef.Definition) { d.Methods[0].Params[0].Type = "int" },
			rule:   RuleParamType,
		},
		{
			name:   "missing parameter annotation",
			mutate: func(d *typedef.Definition) { d.Methods[0].Params[0].Annotations = nil },
			rule:   RuleParamAnnotation,
		},
	}

	capability := mustType(t, greeter("com.host"))
	m := NewMatcher()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := greeter("com.plugin")
			tt.mutate(def)
			if def.Kind == typedef.KindClass {
				def.Constructor = typedef.AccessPublic
			}
			candidate := mustType(t, def)

			mm := m.Explain(candidate, capability)
			require.NotNil(t, mm)
			assert.Equal(t, tt.rule, mm.Rule)
			assert.NotEmpty(t, mm.Error())
			assert.False(t, m.Match(candidate, capability))
		})
	}
}

func TestMatcher_NilTypes(t *testing.T) {
	m := NewMatcher()
	host := mustType(t, greeter("com.host"))

	mm := m.Explain(nil, host)
	require.NotNil(t, mm)
	assert.Equal(t, RuleNil, mm.Rule)
	assert.Equal(t, "<nil>", mm.Candidate)
	assert.False(t, m.Match(host, nil))
}

func TestMatcher_MethodOrder(t *testing.T) {
	reordered := greeter("com.plugin")
	reordered.Methods[0], reordered.Methods[1] = reordered.Methods[1], reordered.Methods[0]

	candidate := mustType(t, reordered)
	capability := mustType(t, greeter("com.host"))

	positional := NewMatcher()
	assert.Equal(t, OrderPositional, positional.MethodOrder())
	mm := positional.Explain(candidate, capability)
	require.NotNil(t, mm, "declaration order matters by default")
	assert.Equal(t, RuleMethodName, mm.Rule)
	assert.Equal(t, "methods[0]", mm.Location)

	byName := NewMatcher(WithMethodOrder(OrderByName))
	assert.True(t, byName.Match(candidate, capability))
	assert.Equal(t, "Close", candidate.Methods()[0].Name, "sorting must not touch the handle")
}

func TestAnnotationsEqual(t *testing.T) {
	a := typedef.Annotation{Name: "A"}
	b := typedef.Annotation{Name: "B", Values: map[string]string{"k": "v"}}

	assert.True(t, AnnotationsEqual(nil, nil))
	assert.True(t, AnnotationsEqual([]typedef.Annotation{a, b}, []typedef.Annotation{b, a}))
	assert.True(t, AnnotationsEqual([]typedef.Annotation{a, a}, []typedef.Annotation{a, a}))
	assert.False(t, AnnotationsEqual([]typedef.Annotation{a, a}, []typedef.Annotation{a, b}))
	assert.False(t, AnnotationsEqual([]typedef.Annotation{a}, []typedef.Annotation{a, a}))
}

func TestParseOptions(t *testing.T) {
	order, err := ParseMethodOrder("name")
	require.NoError(t, err)
	assert.Equal(t, OrderByName, order)
	assert.Equal(t, "name", order.String())

	order, err = ParseMethodOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderPositional, order)

	_, err = ParseMethodOrder("random")
	assert.Error(t, err)

	policy, err := ParsePolicy("ALL")
	require.NoError(t, err)
	assert.Equal(t, PolicyAll, policy)
	assert.Equal(t, "all", policy.String())

	_, err = ParsePolicy("some")
	assert.Error(t, err)
}

func drawDefinition(t *rapid.T, label string) *typedef.Definition {
	annotations := []typedef.Annotation{
		{Name: "A"},
		{Name: "B"},
		{Name: "A", Values: map[string]string{"k": "v"}},
	}
	drawAnnotations := func(l string) []typedef.Annotation {
		n := rapid.IntRange(0, 2).Draw(t, l+"Count")
		out := make([]typedef.Annotation, n)
		for i := range out {
			out[i] = rapid.SampledFrom(annotations).Draw(t, fmt.Sprintf("%s%d", l, i))
		}
		return out
	}

	def := &typedef.Definition{
		Name:        rapid.SampledFrom([]string{"a", "b"}).Draw(t, label+"Pkg") + "." + rapid.SampledFrom([]string{"Greeter", "Closer"}).Draw(t, label+"Name"),
		Kind:        rapid.SampledFrom([]typedef.Kind{typedef.KindInterface, typedef.KindInterface, typedef.KindAbstract}).Draw(t, label+"Kind"),
		Constructor: typedef.AccessNone,
		Annotations: drawAnnotations(label + "Ann"),
	}

	methods := rapid.IntRange(0, 3).Draw(t, label+"Methods")
	for i := 0; i < methods; i++ {
		ml := fmt.Sprintf("%sM%d", label, i)
		m := typedef.Method{
			Name:    rapid.SampledFrom([]string{"Do", "Get", "Set"}).Draw(t, ml+"Name"),
			Returns: rapid.SampledFrom([]string{"", "string", "error"}).Draw(t, ml+"Returns"),
		}
		params := rapid.IntRange(0, 2).Draw(t, ml+"Params")
		for j := 0; j < params; j++ {
			pl := fmt.Sprintf("%sP%d", ml, j)
			m.Params = append(m.Params, typedef.Param{
				Name:        rapid.SampledFrom([]string{"x", "y"}).Draw(t, pl+"Name"),
				Type:        rapid.SampledFrom([]string{"int", "string"}).Draw(t, pl+"Type"),
				Annotations: drawAnnotations(pl + "Ann"),
			})
		}
		def.Methods = append(def.Methods, m)
	}
	return def
}

func TestMatcher_SymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		order := rapid.SampledFrom([]MethodOrder{OrderPositional, OrderByName}).Draw(t, "order")
		m := NewMatcher(WithMethodOrder(order))

		a, err := typedef.NewType(drawDefinition(t, "a"), nil, "a", nil)
		if err != nil {
			t.Fatalf("NewType: %v", err)
		}
		b, err := typedef.NewType(drawDefinition(t, "b"), nil, "b", nil)
		if err != nil {
			t.Fatalf("NewType: %v", err)
		}

		if m.Match(a, b) != m.Match(b, a) {
			t.Fatalf("asymmetric match between %v and %v", a.Definition(), b.Definition())
		}
		if a.IsInterface() && !m.Match(a, a) {
			t.Fatalf("interface %v does not match itself", a.Definition())
		}
	})
}
