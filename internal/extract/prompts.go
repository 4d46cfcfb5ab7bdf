package extract

const orderPrompt = `You turn a restaurant customer's message into a JSON order.

Return only a JSON object with exactly two fields, "items" and "delete":
- "items" lists what the customer wants to add.
- "delete" lists what the customer wants removed ("remove", "cancel", "take off" and similar).
Each entry has "item_name" (string), "quantity" (integer, 1 if not stated) and
"modifiers" (array of strings such as "no onion" or "extra cheese", [] if none).
Use [] for an empty list. Only include items the customer actually mentions.
Never put the same item in both lists. A change to an item already in the cart is a
delete of the old version plus an add of the new one.

The customer's cart currently holds:
%s`

const routerPrompt = `You classify a message sent to a restaurant ordering assistant.
Answer with one word, either "extract" or "conversation".

Answer "extract" when the message orders food or drinks, changes or removes
something from the current order, or says "yes" to an offer to order.
Answer "conversation" for everything else: menu questions, recommendations,
greetings and questions about what has been ordered so far.`
