package rng

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Derive maps a base seed and a run index to an independent run seed.
// Batches use it so that system i of a batch is reproducible on its own.
func Derive(base int64, index int) int64 {
	ui := uint64(uint32(int32(index)))
	v := uint64(base) ^ (ui * 0x9e3779b97f4a7c15) ^ 0xc2b2ae3d27d4eb4f
	return int64(mix64(v))
}
