// Public domain.

package main

import "reflred/internal/rfprog"

func main() {
	rfprog.Main()
}
