package ordering

// Allocate returns the position for an item appended to a sibling scope whose
// highest stored position is top. A nil top means the scope is empty.
func Allocate(top *int) int {
	if top == nil {
		return 0
	}
	return *top + 1
}
