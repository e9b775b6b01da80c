// Package admission doc.
//
// # Usage
//
//	ctrl := admission.New(admission.Config{
//	    BudgetMB: 16000,
//	    Models: map[string]admission.ModelSpec{
//	        "persondetector": {VRAMCostMB: 2000, MaxConcurrency: 4},
//	    },
//	})
//
//	ticket, err := ctrl.Acquire(ctx, "persondetector", time.Now().Add(30*time.Second))
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Release(ctx, ticket)
package admission
