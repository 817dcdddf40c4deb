package demux

// sieveState is the value held in one hash_sieve slot.
type sieveState = int32

const (
	sieveEmpty     sieveState = -1
	sieveCollision sieveState = -2
)

// dictionary is the two-tier barcode lookup structure described for the
// Demuxer: a dense hash_sieve fast path backed by an exact_map for the slots
// where two or more generated keys collided. It is built once and never
// mutated after construction.
type dictionary struct {
	exactMap  map[int64]int
	hashSieve []sieveState

	// collisions counts hash_sieve slots that were switched to the collision
	// state because keys from two different samples landed in them, purely
	// for diagnostics (logged at construction time).
	collisions int
}

func newDictionary() *dictionary {
	d := &dictionary{
		exactMap:  make(map[int64]int),
		hashSieve: make([]sieveState, hashSieveSize),
	}
	for i := range d.hashSieve {
		d.hashSieve[i] = sieveEmpty
	}
	return d
}

// insert records that key maps to sampleID. If key was already present
// (from a previous sample, or from this sample's own mismatch expansion),
// the later insert wins, matching the reference implementation's
// last-insert-wins collision policy.
func (d *dictionary) insert(key int64, sampleID int) {
	d.exactMap[key] = sampleID

	h := sieveHash(key)
	switch d.hashSieve[h] {
	case sieveEmpty:
		d.hashSieve[h] = sieveState(sampleID)
	case sieveState(sampleID):
		// already unique for this sample; no state change.
	default:
		if d.hashSieve[h] != sieveCollision {
			d.collisions++
		}
		d.hashSieve[h] = sieveCollision
	}
}

// lookup resolves key to a sample id, or -1 if key is not in the
// dictionary (the caller treats -1 as "undecoded").
func (d *dictionary) lookup(key int64) int {
	h := sieveHash(key)
	switch s := d.hashSieve[h]; {
	case s >= 0:
		return int(s)
	case s == sieveCollision:
		if sampleID, ok := d.exactMap[key]; ok {
			return sampleID
		}
		return -1
	default:
		return -1
	}
}
