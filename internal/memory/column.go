package memory

import (
	"fmt"
	"math"

	rerrors "github.com/23skdu/reduced/internal/errors"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Float64Column is a fixed-length float64 column backed by an Arrow buffer.
// The values slice aliases the buffer; it is invalid after Release.
type Float64Column struct {
	buf    *memory.Buffer
	values []float64
}

// Float64ColumnBytes returns the payload size of an n-element column, or false
// when n is negative or the size does not fit in an int.
func Float64ColumnBytes(n int) (int, bool) {
	if n < 0 || n > math.MaxInt/arrow.Float64SizeBytes {
		return 0, false
	}
	return arrow.Float64Traits.BytesRequired(n), true
}

// NewFloat64Column allocates an n-element column from mem. Allocator panics,
// including TrackingAllocator limit rejections, are returned as allocation errors.
func NewFloat64Column(mem memory.Allocator, n int) (col *Float64Column, err error) {
	size, ok := Float64ColumnBytes(n)
	if !ok {
		return nil, rerrors.NewAllocationError("NewFloat64Column",
			fmt.Sprintf("column of %d float64 values is not addressable", n)).
			WithContext("length", n)
	}

	buf := memory.NewResizableBuffer(mem)
	defer func() {
		if r := recover(); r != nil {
			if len(buf.Buf()) > 0 {
				buf.Release()
			}
			col = nil
			err = rerrors.WrapAllocationError(panicError(r), "NewFloat64Column",
				fmt.Sprintf("cannot allocate %d bytes", size)).
				WithContext("length", n).
				WithContext("bytes", size)
		}
	}()

	buf.Resize(size)
	return &Float64Column{
		buf:    buf,
		values: arrow.Float64Traits.CastFromBytes(buf.Bytes()),
	}, nil
}

// Values returns the column contents.
func (c *Float64Column) Values() []float64 {
	if c == nil {
		return nil
	}
	return c.values
}

// Len returns the number of elements.
func (c *Float64Column) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// Release returns the buffer to its allocator. Safe to call more than once.
func (c *Float64Column) Release() {
	if c == nil || c.buf == nil {
		return
	}
	c.values = nil
	c.buf.Release()
	c.buf = nil
}

func panicError(r interface{}) error {
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("%v", r)
}
