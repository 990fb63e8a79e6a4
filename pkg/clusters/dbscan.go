package clusters

import "errors"

// DBSCAN groups points that have at least MinPts neighbors within Eps into
// dense clusters and leaves the rest unassigned (noise). Noise points get
// cluster number 0 in Guesses.
type DBSCAN struct {
	Eps      float64
	MinPts   int
	Distance DistanceFunc

	guesses []int
	sizes   []int
}

// NewDBSCAN returns a clusterer with the given neighborhood radius and
// minimum cluster size. The distance function defaults to EuclideanDistance.
func NewDBSCAN(eps float64, minPts int, distance DistanceFunc) (*DBSCAN, error) {
	if eps <= 0 {
		return nil, errors.New("clusters: eps must be positive")
	}

	if minPts < 1 {
		return nil, errors.New("clusters: minPts must be at least 1")
	}

	if distance == nil {
		distance = EuclideanDistance
	}

	return &DBSCAN{
		Eps:      eps,
		MinPts:   minPts,
		Distance: distance,
	}, nil
}

// Learn runs the clustering over the observations.
func (c *DBSCAN) Learn(data [][]float32) error {
	n := len(data)

	c.guesses = make([]int, n)
	c.sizes = c.sizes[:0]

	if n == 0 {
		return nil
	}

	const (
		unvisited = 0
		noise     = -1
	)

	labels := make([]int, n)
	cluster := 0

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := c.regionQuery(data, i)

		if len(neighbors) < c.MinPts {
			labels[i] = noise
			continue
		}

		cluster++
		labels[i] = cluster

		// Expand the cluster by walking the neighborhood frontier. Border
		// points already marked noise are claimed, but only core points
		// (dense neighborhoods) extend the frontier.
		for k := 0; k < len(neighbors); k++ {
			j := neighbors[k]

			if labels[j] == noise {
				labels[j] = cluster
				continue
			}

			if labels[j] != unvisited {
				continue
			}

			labels[j] = cluster

			jn := c.regionQuery(data, j)
			if len(jn) >= c.MinPts {
				neighbors = append(neighbors, jn...)
			}
		}
	}

	c.sizes = make([]int, cluster)

	for i, label := range labels {
		if label == noise {
			c.guesses[i] = 0
			continue
		}

		c.guesses[i] = label
		c.sizes[label-1]++
	}

	return nil
}

// Guesses returns the cluster assignment per observation (0 = noise).
func (c *DBSCAN) Guesses() []int {
	return c.guesses
}

// Sizes returns the member count per cluster.
func (c *DBSCAN) Sizes() []int {
	return c.sizes
}

// regionQuery returns the indices of all points within Eps of point i,
// including i itself.
func (c *DBSCAN) regionQuery(data [][]float32, i int) []int {
	var neighbors []int

	for j := range data {
		if c.Distance(data[i], data[j]) <= c.Eps {
			neighbors = append(neighbors, j)
		}
	}

	return neighbors
}
