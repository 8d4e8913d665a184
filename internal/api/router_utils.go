package api

import (
	"fmt"
	"strings"

	"github.com/gorilla/mux"
)

// PrintRoutes walks through all routes registered in the router and prints them
func PrintRoutes(r *mux.Router) {
	fmt.Println("\n=== Registered Routes ===")
	fmt.Println("METHOD\tPATH")
	fmt.Println("-------------------------------")

	r.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return nil // Skip routes without templates
		}

		methods, err := route.GetMethods()
		methodStr := "ANY"
		if err == nil && len(methods) > 0 {
			methodStr = strings.Join(methods, ",")
		}

		fmt.Printf("%s\t%s\n", methodStr, pathTemplate)
		return nil
	})

	fmt.Println("==============================")
}
