package game

// The throw of four yut sticks collapses to a discrete distribution over
// the step values. Percent weights:
//
//	-1 (back-do): 10    0 (miss): 10    +1: 20    +2: 20
//	+3: 20              +4 (yut): 10    +5 (mo): 10
var diceTable = []struct {
	value  int
	weight int
}{
	{-1, 10},
	{0, 10},
	{1, 20},
	{2, 20},
	{3, 20},
	{4, 10},
	{5, 10},
}

func (g *Instance) rollValue() int {
	n := g.rng.Intn(100)
	for _, e := range diceTable {
		if n < e.weight {
			return e.value
		}
		n -= e.weight
	}
	return diceTable[len(diceTable)-1].value
}
