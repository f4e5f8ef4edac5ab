package fmtt

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true, // show phases as numbers, like the trace
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// PrintErrChain walks an error chain and prints each layer with its type.
// Joined errors are walked branch by branch.
func PrintErrChain(w io.Writer, err error) {
	if err == nil {
		fmt.Fprintln(w, "<nil>")
		return
	}
	printChain(w, err, "")
}

func printChain(w io.Writer, err error, indent string) {
	for i := 0; err != nil; i++ {
		fmt.Fprintf(w, "%s[%d] %T: %v\n", indent, i, err, err)
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range j.Unwrap() {
				printChain(w, e, indent+"    ")
			}
			return
		}
		err = errors.Unwrap(err)
	}
}

// Dump writes every exported field of v with spew.
func Dump(w io.Writer, v any) {
	dumper.Fdump(w, v)
}

// DumpErrFields prints the error chain and, for every struct layer, its
// fields. Pointer fields are dumped in full.
func DumpErrFields(w io.Writer, err error) {
	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(w, "[%d] %T\n", i, err)
		fmt.Fprintf(w, "   Error(): %v\n", err)

		rv := reflect.ValueOf(err)
		rt := reflect.TypeOf(err)
		if rt.Kind() == reflect.Ptr {
			rv = rv.Elem()
			rt = rt.Elem()
		}
		if rt.Kind() == reflect.Struct {
			for j := 0; j < rt.NumField(); j++ {
				f := rt.Field(j)
				v := rv.Field(j)
				if !v.CanInterface() {
					continue
				}
				fmt.Fprintf(w, "   Field %s (%s):\n", f.Name, f.Type)
				dumper.Fdump(w, v.Interface())
			}
		}
		i++
	}
}
