package contextual

import "testing"

func BenchmarkSettingReadMemoized(b *testing.B) {
	st := NewState()
	speed := NewSetting[int, float64]("bench.speed", toFloat, WithDefault(16))
	if _, err := speed.GetIn(st); err != nil {
		b.Fatalf("prime: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := speed.GetIn(st); err != nil {
			b.Fatalf("read: %v", err)
		}
	}
}

func BenchmarkSettingReadDeepChain(b *testing.B) {
	st := NewState()
	speed := NewSetting[int, float64]("bench.deep.speed", toFloat, WithDefault(16))
	for i := 0; i < 32; i++ {
		st.pushNew()
	}
	if _, err := speed.GetIn(st); err != nil {
		b.Fatalf("prime: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := speed.GetIn(st); err != nil {
			b.Fatalf("read: %v", err)
		}
	}
}

func BenchmarkGuardEnterExit(b *testing.B) {
	iso := EnterEmpty()
	defer iso.Exit()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g := Enter()
		if err := g.Exit(); err != nil {
			b.Fatalf("exit: %v", err)
		}
	}
}

func BenchmarkServiceCurrent(b *testing.B) {
	st := NewState()
	svc := NewService("bench.counter", basicCounter)
	if _, err := svc.CurrentIn(st); err != nil {
		b.Fatalf("prime: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.CurrentIn(st); err != nil {
			b.Fatalf("current: %v", err)
		}
	}
}
