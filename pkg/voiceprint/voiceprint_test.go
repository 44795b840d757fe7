package voiceprint

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/gmm"
	"github.com/haivivi/vocalis/pkg/kv"
	"github.com/haivivi/vocalis/pkg/storage"
)

func TestDeltaThreeRows(t *testing.T) {
	x := [][]float64{{1, 0}, {2, 10}, {4, -5}}
	got := Delta(x)

	// Hand-computed with clamped neighbours:
	//   d[0] = (x2 - x0 + 2*(x1 - x0)) / 10
	//   d[1] = (x2 - x0 + 2*(x2 - x0)) / 10
	//   d[2] = (x2 - x0 + 2*(x2 - x1)) / 10
	want := [][]float64{
		{(4 - 1 + 2*(2-1)) / 10.0, (-5 - 0 + 2*(10-0)) / 10.0},
		{(4 - 1 + 2*(4-1)) / 10.0, (-5 - 0 + 2*(-5-0)) / 10.0},
		{(4 - 1 + 2*(4-2)) / 10.0, (-5 - 0 + 2*(-5-10)) / 10.0},
	}
	if len(got) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got), len(want))
	}
	for i := range want {
		for c := range want[i] {
			if math.Abs(got[i][c]-want[i][c]) > 1e-12 {
				t.Errorf("d[%d][%d] = %v, want %v", i, c, got[i][c], want[i][c])
			}
		}
	}
}

func TestDeltaEdgeCases(t *testing.T) {
	if got := Delta(nil); len(got) != 0 {
		t.Errorf("Delta(nil) = %v", got)
	}
	got := Delta([][]float64{{3, 4}})
	if got[0][0] != 0 || got[0][1] != 0 {
		t.Errorf("single row delta = %v, want zeros", got[0])
	}

	// A unit ramp has constant delta (4 + 2*2)/10 away from the edges.
	ramp := make([][]float64, 9)
	for i := range ramp {
		ramp[i] = []float64{float64(i)}
	}
	d := Delta(ramp)
	for i := 2; i < 7; i++ {
		if math.Abs(d[i][0]-0.8) > 1e-12 {
			t.Errorf("ramp d[%d] = %v, want 0.8", i, d[i][0])
		}
	}
}

func TestAppendDeltas(t *testing.T) {
	x := [][]float64{{1}, {2}, {4}}
	got := AppendDeltas(x)
	for i, row := range got {
		if len(row) != 2 || row[0] != x[i][0] {
			t.Errorf("row %d = %v", i, row)
		}
	}
}

func speech(seed uint64, seconds float64, rate int, f0 float64) *wave.Buffer {
	rng := rand.New(rand.NewPCG(seed, seed))
	n := int(seconds * float64(rate))
	x := make([]float64, n)
	for i := range x {
		tt := float64(i) / float64(rate)
		// Harmonic tone with slow vibrato plus noise.
		f := f0 * (1 + 0.02*math.Sin(2*math.Pi*3*tt))
		for h := 1; h <= 5; h++ {
			x[i] += math.Sin(2*math.Pi*f*float64(h)*tt) / float64(h)
		}
		x[i] = 0.3*x[i] + 0.05*rng.NormFloat64()
	}
	wave.Normalize(x)
	return wave.New(x, rate)
}

func TestFeatures(t *testing.T) {
	fx, err := NewFeatureExtractor(0)
	if err != nil {
		t.Fatal(err)
	}
	buf := speech(1, 1, 16000, 150)
	rows, err := fx.Features(buf)
	if err != nil {
		t.Fatal(err)
	}
	// (16000 - 400) / 160 + 1 frames.
	if len(rows) != 98 {
		t.Errorf("frames = %d, want 98", len(rows))
	}
	for i, r := range rows {
		if len(r) != Dim {
			t.Fatalf("row %d width = %d, want %d", i, len(r), Dim)
		}
	}

	// Standardized coefficients have zero mean per column.
	for c := range NumCoefficients {
		var sum float64
		for _, r := range rows {
			sum += r[c]
		}
		if math.Abs(sum/float64(len(rows))) > 1e-9 {
			t.Errorf("column %d mean = %v", c, sum/float64(len(rows)))
		}
	}

	// Other input rates are resampled first.
	rows22, err := fx.Features(speech(1, 1, 22050, 150))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows22) != 98 {
		t.Errorf("22.05k frames = %d, want 98", len(rows22))
	}

	short, err := fx.Features(wave.New(make([]float64, 100), 16000))
	if err != nil || len(short) != 0 {
		t.Errorf("short input: %d rows, %v", len(short), err)
	}
}

func TestValidateUser(t *testing.T) {
	for _, u := range []string{"alice", "bob.smith", "user_1"} {
		if err := ValidateUser(u); err != nil {
			t.Errorf("ValidateUser(%q) = %v", u, err)
		}
	}
	for _, u := range []string{"", ".", "..", ".alice", "a/b", "a:b", `a\b`} {
		if err := ValidateUser(u); !errors.Is(err, ErrInvalidUser) {
			t.Errorf("ValidateUser(%q) = %v, want ErrInvalidUser", u, err)
		}
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	bdg, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdg.Close() })
	return map[string]Store{
		"memory": NewKVStore(kv.NewMemory(nil)),
		"badger": NewKVStore(bdg),
		"local":  NewBlobStore(local, ""),
	}
}

func blob(rng *rand.Rand, n int, mu float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		r := make([]float64, Dim)
		for c := range r {
			r[c] = mu + rng.NormFloat64()
		}
		rows[i] = r
	}
	return rows
}

func fitted(t *testing.T, user string, rows [][]float64) *Voiceprint {
	t.Helper()
	m, err := gmm.Fit(rows, gmm.Config{Components: 4, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	return &Voiceprint{User: user, Model: m, Recordings: 1, Frames: len(rows)}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 1))
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if users, err := s.Users(ctx); err != nil || len(users) != 0 {
				t.Fatalf("empty Users = %v, %v", users, err)
			}
			if _, err := s.Get(ctx, "alice"); !errors.Is(err, ErrNotEnrolled) {
				t.Fatalf("Get missing = %v", err)
			}

			a := fitted(t, "alice", blob(rng, 100, 0))
			b := fitted(t, "bob", blob(rng, 100, 5))
			for _, v := range []*Voiceprint{b, a} {
				if err := s.Put(ctx, v); err != nil {
					t.Fatal(err)
				}
			}

			users, err := s.Users(ctx)
			if err != nil || len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
				t.Fatalf("Users = %v, %v", users, err)
			}
			all, err := s.All(ctx)
			if err != nil || len(all) != 2 || all[0].User != "alice" {
				t.Fatalf("All = %v, %v", all, err)
			}

			got, err := s.Get(ctx, "alice")
			if err != nil {
				t.Fatal(err)
			}
			test := blob(rng, 10, 0)
			want, _ := a.Model.Score(test)
			have, _ := got.Model.Score(test)
			if want != have {
				t.Errorf("decoded model scores %v, want %v", have, want)
			}

			// Re-enrollment replaces the voiceprint.
			a2 := fitted(t, "alice", blob(rng, 100, -3))
			if err := s.Put(ctx, a2); err != nil {
				t.Fatal(err)
			}
			got, _ = s.Get(ctx, "alice")
			if got.Model.LowerBound != a2.Model.LowerBound {
				t.Error("Put did not replace the voiceprint")
			}

			if err := s.Delete(ctx, "bob"); err != nil {
				t.Fatal(err)
			}
			users, _ = s.Users(ctx)
			if len(users) != 1 || users[0] != "alice" {
				t.Errorf("after delete Users = %v", users)
			}

			// A name every backend could store but a blob listing would hide.
			hidden := fitted(t, ".carol", blob(rng, 100, 2))
			if err := s.Put(ctx, hidden); !errors.Is(err, ErrInvalidUser) {
				t.Errorf("Put .carol = %v, want ErrInvalidUser", err)
			}
			users, _ = s.Users(ctx)
			all, _ = s.All(ctx)
			if len(users) != len(all) {
				t.Errorf("Users = %v but All has %d voiceprints", users, len(all))
			}
		})
	}
}

func TestVerifyClosedSet(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(2, 3))
	store := NewKVStore(kv.NewMemory(nil))
	store.Put(ctx, fitted(t, "A", blob(rng, 200, 0)))
	store.Put(ctx, fitted(t, "B", blob(rng, 200, 8)))

	v, err := NewVerifier(store)
	if err != nil {
		t.Fatal(err)
	}
	test := blob(rng, 30, 0.1)

	res, err := v.VerifyFeatures(ctx, "A", test)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Accepted() || res.Identified != "A" {
		t.Errorf("claim A: %+v", res)
	}
	if len(res.Scores) != 2 || res.Scores[0].User != "A" || !(res.Scores[0].LogLikelihood > res.Scores[1].LogLikelihood) {
		t.Errorf("scores = %+v", res.Scores)
	}

	res, err = v.VerifyFeatures(ctx, "B", test)
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted() || res.Result != Fail || res.Identified != "A" {
		t.Errorf("claim B: %+v", res)
	}

	// Claiming an unknown user is a rejection, not an error.
	res, err = v.VerifyFeatures(ctx, "carol", test)
	if err != nil || res.Accepted() {
		t.Errorf("claim carol: %+v, %v", res, err)
	}
}

func TestVerifyAfterRepeatedFrames(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(4, 5))

	// 60 frames over 3 distinct points leave a component empty.
	points := blob(rng, 3, 0)
	rows := make([][]float64, 60)
	for i := range rows {
		rows[i] = points[i%3]
	}
	store := NewKVStore(kv.NewMemory(nil))
	if err := store.Put(ctx, fitted(t, "alice", rows)); err != nil {
		t.Fatalf("Put alice: %v", err)
	}
	if err := store.Put(ctx, fitted(t, "bob", blob(rng, 200, 8))); err != nil {
		t.Fatal(err)
	}

	v, _ := NewVerifier(store)
	res, err := v.VerifyFeatures(ctx, "alice", points)
	if err != nil {
		t.Fatalf("VerifyFeatures: %v", err)
	}
	if !res.Accepted() {
		t.Errorf("claim alice: %+v", res)
	}
}

func TestEncodeRejectsNonFiniteModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 7))
	vp := fitted(t, "alice", blob(rng, 100, 0))
	vp.Model.Means[0][0] = math.NaN()
	if _, err := vp.Encode(); !errors.Is(err, gmm.ErrNonFinite) {
		t.Errorf("Encode = %v, want gmm.ErrNonFinite", err)
	}
	err := NewKVStore(kv.NewMemory(nil)).Put(context.Background(), vp)
	if err == nil {
		t.Error("Put stored a NaN model")
	}
}

func TestVerifyErrors(t *testing.T) {
	ctx := context.Background()
	v, _ := NewVerifier(NewKVStore(kv.NewMemory(nil)))

	if _, err := v.Verify(ctx, "a", nil); !errors.Is(err, ErrMissingTestAudio) {
		t.Errorf("nil buffer: %v", err)
	}
	if _, err := v.Verify(ctx, "a", wave.New(make([]float64, 50), 16000)); !errors.Is(err, ErrMissingTestAudio) {
		t.Errorf("short buffer: %v", err)
	}
	if _, err := v.Verify(ctx, "a", speech(1, 0.5, 16000, 120)); !errors.Is(err, ErrNoEnrolledUsers) {
		t.Errorf("empty store: %v", err)
	}
}

func TestEnrollAndVerify(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(kv.NewMemory(nil))
	opts := []Option{WithGMM(gmm.Config{Components: 8, NInit: 1, MaxIter: 50, Seed: 1})}

	e, err := NewEnroller(store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	vp, err := e.Enroll(ctx, "alice", []*wave.Buffer{speech(1, 1, 16000, 120), speech(2, 1, 16000, 125)})
	if err != nil {
		t.Fatal(err)
	}
	if vp.Frames != 196 || vp.Recordings != 2 || vp.Model.Dim() != Dim {
		t.Errorf("voiceprint = frames %d recordings %d dim %d", vp.Frames, vp.Recordings, vp.Model.Dim())
	}
	if ok, _ := e.Exists(ctx, "alice"); !ok {
		t.Error("alice not enrolled")
	}

	v, _ := NewVerifier(store, opts...)
	res, err := v.Verify(ctx, "alice", speech(3, 1, 16000, 122))
	if err != nil {
		t.Fatal(err)
	}
	// With one enrolled user identification is trivially that user.
	if !res.Accepted() || len(res.Scores) != 1 {
		t.Errorf("verify = %+v", res)
	}

	if err := e.Delete(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.Exists(ctx, "alice"); ok {
		t.Error("alice still enrolled after delete")
	}
}

func TestEnrollInsufficientData(t *testing.T) {
	e, _ := NewEnroller(NewKVStore(kv.NewMemory(nil)))
	ctx := context.Background()

	// 0.1 s gives 8 frames, fewer than 16 components.
	_, err := e.Enroll(ctx, "bob", []*wave.Buffer{speech(1, 0.1, 16000, 100)})
	if !errors.Is(err, ErrInsufficientEnrollmentData) {
		t.Errorf("short recording: %v", err)
	}
	_, err = e.Enroll(ctx, "bob", nil)
	if !errors.Is(err, ErrInsufficientEnrollmentData) {
		t.Errorf("no recordings: %v", err)
	}
	_, err = e.Enroll(ctx, "a/b", []*wave.Buffer{speech(1, 1, 16000, 100)})
	if !errors.Is(err, ErrInvalidUser) {
		t.Errorf("bad user: %v", err)
	}
}

func TestEnrollConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(kv.NewMemory(nil))
	e, _ := NewEnroller(store, WithGMM(gmm.Config{Components: 2, NInit: 1, MaxIter: 10}))

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Enroll(ctx, "carol", []*wave.Buffer{speech(uint64(i), 0.3, 16000, 100+float64(10*i))}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	users, _ := store.Users(ctx)
	if len(users) != 1 || users[0] != "carol" {
		t.Errorf("Users = %v", users)
	}
	if _, err := store.Get(ctx, "carol"); err != nil {
		t.Errorf("Get after concurrent enroll: %v", err)
	}
}
