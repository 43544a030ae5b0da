package math

import (
	"testing"
)

func TestVec2Cross(t *testing.T) {
	a := Vec2{1, 0}
	b := Vec2{0, 1}
	if got := a.Cross(b); got != 1 {
		t.Errorf("Vec2.Cross() = %v, want 1", got)
	}
	if got := b.Cross(a); got != -1 {
		t.Errorf("Vec2.Cross() reversed = %v, want -1", got)
	}
}

func TestVec2Length(t *testing.T) {
	v := Vec2{3, 4}
	got := v.Length()
	want := float32(5)
	if got != want {
		t.Errorf("Vec2.Length() = %v, want %v", got, want)
	}
	if got := v.Sub(Vec2{3, 4}).Length(); got != 0 {
		t.Errorf("Vec2.Sub() self length = %v, want 0", got)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{0, 3, 4}.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if z := (Vec3{}).Normalize(); z != (Vec3{}) {
		t.Errorf("zero vector should normalize to zero, got %v", z)
	}
}

func TestVec3From(t *testing.T) {
	got := Vec3From([3]float32{1, 2, 3}).Add(Vec3{1, 1, 1}).Scale(2)
	want := Vec3{4, 6, 8}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, -2, 3}
	b := Vec3{-1, 2, 0}
	if got, want := a.Min(b), (Vec3{-1, -2, 0}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{1, 2, 3}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
	if got, want := a.Array(), [3]float32{1, -2, 3}; got != want {
		t.Errorf("Vec3.Array() = %v, want %v", got, want)
	}
}

func TestVec3LerpDistance(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{2, 4, 4}
	if got, want := a.Lerp(b, 0.5), (Vec3{1, 2, 2}); got != want {
		t.Errorf("Vec3.Lerp() = %v, want %v", got, want)
	}
	if got := a.Distance(b); got != 6 {
		t.Errorf("Vec3.Distance() = %v, want 6", got)
	}
}
