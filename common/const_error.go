package common

// ConstError is an error type for immutable error constants. Unlike values
// produced by errors.New, a ConstError can be declared as a true constant
// and compared or matched with errors.Is without risk of being reassigned.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}
