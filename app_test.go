package cloth

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_changeState(t *testing.T) {
	app := &App{
		stateful:     true,
		initialState: 1,
		state:        1,
		finalState:   2,
	}

	// Test changing state
	app.changeState(2)
	if app.nextState != State(2) {
		t.Errorf("The nextState should be set correctly.")
	}
	if !app.stateTransitioning {
		t.Errorf("The stateTransitioning flag should be true.")
	}

	// Test executing state change
	app.executeChangeState(2)
	if app.state != State(2) {
		t.Errorf("The app state should change correctly.")
	}
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	// Expect panic when trying to add the same type of resource again
	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")

	assert.Same(t, resource2, Resource[MockResource2](app))
	assert.Nil(t, Resource[Time](app))

	require.Panics(t, func() { app.addResources(MockResource1{}) }, "value resources are rejected")
}

func TestApp_SystemsReceiveResources(t *testing.T) {
	app := NewAppBuilder().Build()
	app.addResources(NewMockResource1("a"), NewMockResource2("b"))

	var order []string
	app.UseSystem(System(func(r1 *MockResource1, r2 *MockResource2) {
		order = append(order, "update:"+r1.name+r2.name)
	}))
	app.UseSystem(System(func(r1 *MockResource1) {
		order = append(order, "prelude:"+r1.name)
	}).InStage(Prelude))
	app.UseSystem(System(func(cmd *Commands) {
		order = append(order, "finale")
		cmd.Exit()
	}).InStage(Finale))

	assert.Equal(t, 1, app.RunFrames(10))
	assert.Equal(t, []string{"prelude:a", "update:ab", "finale"}, order)
	assert.Equal(t, 1, app.Frame())
	assert.False(t, app.Step())
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(*MockResource1) {}))

	assert.Panics(t, func() { app.Step() })
}

func TestApp_UseStage(t *testing.T) {
	app := NewAppBuilder().Build()
	physics := Stage{Name: "Physics"}
	app.UseStage(physics, AfterStage(Update))
	app.UseStage(Stage{Name: "Input"}, BeforeStage(PreUpdate))

	var names []string
	for _, s := range app.stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Prelude", "Input", "PreUpdate", "Update", "Physics", "PostUpdate", "Render", "Finale"}, names)

	assert.Panics(t, func() { app.UseStage(physics, AfterStage(Stage{Name: "Missing"})) })
	assert.Panics(t, func() { app.UseSystem(System(func() {}).InStage(Stage{Name: "Missing"})) })
}

func TestApp_StatefulRun(t *testing.T) {
	app := NewAppBuilder().UseStates(0, 2).Build()

	var log []string
	frames := 0
	app.UseSystem(System(func() { log = append(log, "enter 0") }).InState(OnEnter(0)))
	app.UseSystem(System(func(cmd *Commands) {
		frames++
		if frames == 2 {
			cmd.ChangeState(1)
		}
	}).InState(OnExecute(0)))
	app.UseSystem(System(func() { log = append(log, "exit 0") }).InState(OnExit(0)))
	app.UseSystem(System(func(cmd *Commands) { cmd.ChangeState(2) }).InState(OnExecute(1)))
	app.UseSystem(System(func() { log = append(log, "exit 2") }).InState(OnExit(2)))

	closed := false
	app.Commands().OnClose(func() { closed = true })
	app.Run()

	assert.Equal(t, []string{"enter 0", "exit 0", "exit 2"}, log)
	assert.Equal(t, 3, app.Frame())
	assert.True(t, closed)

	stateless := NewAppBuilder().Build()
	assert.Panics(t, func() { stateless.UseSystem(System(func() {}).InState(OnEnter(0))) })
}
