package world

import (
	"encoding/json"
	"testing"

	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCrateTemplate(t *testing.T, w *World) {
	t.Helper()
	tmpl, err := NewTemplate("crate", []string{"crate", "pushable"},
		&component.Transform{Width: 16, Height: 16},
		&component.Physics{Gravity: 980, AffectedByGravity: true},
		&component.TypeInfo{Name: "crate"},
	)
	require.NoError(t, err)
	w.RegisterTemplate("crate", tmpl)
}

func TestSpawnFromTemplate_Defaults(t *testing.T) {
	w := newTestWorld(t)
	registerCrateTemplate(t, w)

	e, err := w.SpawnFromTemplate("crate", nil)
	require.NoError(t, err)

	tr, ok := e.Transform()
	require.True(t, ok)
	assert.Equal(t, 16.0, tr.Width)

	ph, ok := e.Physics()
	require.True(t, ok)
	assert.Equal(t, 980.0, ph.Gravity)

	assert.Equal(t, "crate", e.TypeName())
	assert.True(t, e.HasTag("crate"))
	assert.True(t, e.HasTag("pushable"))
}

func TestSpawnFromTemplate_DeepMergeOverrides(t *testing.T) {
	// Переопределяются только указанные поля; остальные берутся из шаблона
	w := newTestWorld(t)
	registerCrateTemplate(t, w)

	overrides := map[component.Kind]json.RawMessage{
		component.KindTransform: json.RawMessage(`{"x": 200, "y": 300}`),
	}
	e, err := w.SpawnFromTemplate("crate", overrides)
	require.NoError(t, err)

	tr, _ := e.Transform()
	assert.Equal(t, 200.0, tr.X, "Переопределённое поле")
	assert.Equal(t, 300.0, tr.Y, "Переопределённое поле")
	assert.Equal(t, 16.0, tr.Width, "Непереопределённое поле из шаблона")

	ph, _ := e.Physics()
	assert.Equal(t, 980.0, ph.Gravity, "Нетронутый компонент остаётся шаблонным")
}

func TestSpawnFromTemplate_OverrideForAbsentKindIgnored(t *testing.T) {
	w := newTestWorld(t)
	tmpl, err := NewTemplate("wall", nil, &component.Transform{Width: 64, Height: 64})
	require.NoError(t, err)
	w.RegisterTemplate("wall", tmpl)

	overrides := map[component.Kind]json.RawMessage{
		component.KindPhysics: json.RawMessage(`{"gravity": 1}`),
	}
	e, err := w.SpawnFromTemplate("wall", overrides)
	require.NoError(t, err)

	_, ok := e.Physics()
	assert.False(t, ok, "Переопределение отсутствующего в шаблоне компонента игнорируется")
}

func TestSpawnFromTemplate_Unknown(t *testing.T) {
	w := newTestWorld(t)
	_, err := w.SpawnFromTemplate("nope", nil)
	assert.Error(t, err, "Спавн по незарегистрированному шаблону — ошибка")
}

func TestRegisterTemplate_Overwrite(t *testing.T) {
	w := newTestWorld(t)
	registerCrateTemplate(t, w)

	replacement, err := NewTemplate("crate", nil, &component.Transform{Width: 32, Height: 32})
	require.NoError(t, err)
	w.RegisterTemplate("crate", replacement)

	e, err := w.SpawnFromTemplate("crate", nil)
	require.NoError(t, err)
	tr, _ := e.Transform()
	assert.Equal(t, 32.0, tr.Width, "Повторная регистрация перезаписывает шаблон")
}
