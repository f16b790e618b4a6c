package future_test

import (
	"fmt"
	"time"

	"github.com/amp-labs/amp-gamecore/future"
)

// ExampleGo demonstrates basic future creation and awaiting.
func ExampleGo() {
	fut := future.Go(func() (string, error) {
		return "Hello, Future!", nil
	})

	result, err := fut.Await()
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println(result)
	// Output: Hello, Future!
}

// ExampleNew demonstrates manual future/promise creation.
func ExampleNew() {
	fut, promise := future.New[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		promise.Success(42)
	}()

	result, _ := fut.Await()
	fmt.Println(result)
	// Output: 42
}
