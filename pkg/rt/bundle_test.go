package rt

import (
	"math/rand"
	"testing"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/chazu/csgray/pkg/model"
	"github.com/chazu/csgray/pkg/primitive"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPrim forwards to a real primitive and counts VShot calls.
type countingPrim struct {
	primitive.Primitive
	vshots *int
	pairs  *int
}

func (c countingPrim) VShot(sts []primitive.State, rays []geom.Ray, out [][]primitive.Seg) [][]primitive.Seg {
	*c.vshots++
	*c.pairs += len(rays)
	return primitive.VStub(c, sts, rays, out)
}

// shootAll fires rays through Shootrays with a fresh Resource and
// collects per-ray spans the way shoot does.
func shootAll(sc *Scene, rays []geom.Ray, mod func(*Application)) ([][]span, []int, *Resource) {
	res := NewResource(0)
	spans := make([][]span, len(rays))
	cur := 0
	ap := &Application{
		Scene:    sc,
		Resource: res,
		Hit: func(ap *Application, parts *PartitionList) int {
			for p := range parts.All() {
				spans[cur] = append(spans[cur], span{p.Region.Name, p.InDist, p.OutDist, p.Overlapped()})
			}
			cur++
			return 1
		},
		Miss: func(*Application) int {
			cur++
			return 0
		},
	}
	if mod != nil {
		mod(ap)
	}
	rets := Shootrays(ap, rays)
	return spans, rets, res
}

func TestShootraysMatchesShootray(t *testing.T) {
	rays := []geom.Ray{xRay(0), xRay(0.5), xRay(50), xRay(-0.9)}
	scenes := map[string]*Scene{
		"union":     twoSpheres(t, model.Union),
		"subtract":  twoSpheres(t, model.Subtract),
		"intersect": twoSpheres(t, model.Intersect),
		"overlap":   overlapping(t, 1, 2),
		"air":       overlapping(t, 0, 2),
	}
	mods := map[string]func(*Application){
		"default":     nil,
		"no-booleans": func(ap *Application) { ap.NoBooleans = true },
		"track-air":   func(ap *Application) { ap.TrackAir = true },
	}
	for sname, sc := range scenes {
		for mname, mod := range mods {
			t.Run(sname+"/"+mname, func(t *testing.T) {
				spans, rets, res := shootAll(sc, rays, mod)
				require.Len(t, rets, len(rays))
				for i, r := range rays {
					want := shoot(sc, r, mod)
					assert.Equal(t, want.ret, rets[i], "ray %d", i)
					assert.Equal(t, want.spans, spans[i], "ray %d", i)
				}
				assert.Equal(t, uint64(len(rays)), res.Stats.Rays)
				assert.Empty(t, res.touched)
			})
		}
	}
}

func TestShootraysOneHit(t *testing.T) {
	sc := twoSpheres(t, model.Union)
	spans, rets, _ := shootAll(sc, []geom.Ray{xRay(0), xRay(50)}, func(ap *Application) { ap.OneHit = 1 })
	assert.Equal(t, []int{1, 0}, rets)
	assertSpans(t, []span{{"R", 2, 4, false}}, spans[0])
}

func TestShootraysRandomScene(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	sc := randomScene(t, rng, 40)
	rays := make([]geom.Ray, 200)
	for i := range rays {
		rays[i] = randomRay(rng)
	}
	spans, _, res := shootAll(sc, rays, nil)
	var hits uint64
	for i, r := range rays {
		want := shoot(sc, r, nil)
		assertSpans(t, want.spans, spans[i])
		if len(want.spans) > 0 {
			hits++
		}
	}
	assert.Equal(t, hits, res.Stats.Hits)
	assert.Greater(t, hits, uint64(0))
}

func TestShootraysGroupsByPrimitive(t *testing.T) {
	var sphShots, sphPairs, rppShots, rppPairs int
	sph, err := primitive.Builtin().Lookup("sph")
	require.NoError(t, err)
	rpp, err := primitive.Builtin().Lookup("rpp")
	require.NoError(t, err)
	reg := primitive.NewRegistry(
		countingPrim{Primitive: sph, vshots: &sphShots, pairs: &sphPairs},
		countingPrim{Primitive: rpp, vshots: &rppShots, pairs: &rppPairs},
	)

	db := model.NewDatabase()
	sphere(t, db, "a", 3, 1)
	sphere(t, db, "b", 7, 1)
	_, err = db.AddShape("box", primitive.RPPParams{Min: v3.Vec{X: 10, Y: -1, Z: -1}, Max: v3.Vec{X: 12, Y: 1, Z: 1}})
	require.NoError(t, err)
	region(t, db, "R", 1, model.Union(model.Union(model.Ref("a"), model.Ref("b")), model.Ref("box")))
	flat, err := model.Flatten(db)
	require.NoError(t, err)
	sc, err := Prep(flat, reg, PrepOptions{})
	require.NoError(t, err)
	t.Cleanup(sc.Free)

	rays := []geom.Ray{xRay(0), xRay(0.25), xRay(50)}
	spans, rets, res := shootAll(sc, rays, nil)
	assert.Equal(t, 1, sphShots, "one VShot for all sphere pairs")
	assert.Equal(t, 1, rppShots, "one VShot for all rpp pairs")
	assert.Equal(t, 4, sphPairs)
	assert.Equal(t, 2, rppPairs)
	assert.Equal(t, []int{1, 1, 0}, rets)
	assertSpans(t, []span{{"R", 2, 4, false}, {"R", 6, 8, false}, {"R", 10, 12, false}}, spans[0])
	assert.Empty(t, spans[2])
	assert.Equal(t, uint64(6), res.Stats.Shots)
	assert.Equal(t, uint64(1), res.Stats.MissModel)
}

func TestShootraysEdges(t *testing.T) {
	sc := twoSpheres(t, model.Union)
	assert.Empty(t, Shootrays(&Application{Scene: sc}, nil))
	assert.Panics(t, func() { Shootrays(nil, []geom.Ray{xRay(0)}) })
	assert.Panics(t, func() { Shootrays(&Application{}, []geom.Ray{xRay(0)}) })
	assert.Panics(t, func() {
		Shootrays(&Application{Scene: sc}, []geom.Ray{xRay(0), geom.NewRay(v3.Vec{}, v3.Vec{X: 2})})
	})

	empty, err := Prep(&model.Flat{}, primitive.Builtin(), PrepOptions{})
	require.NoError(t, err)
	_, rets, res := shootAll(empty, []geom.Ray{xRay(0), xRay(1)}, nil)
	assert.Equal(t, []int{0, 0}, rets)
	assert.Equal(t, uint64(2), res.Stats.MissModel)
}
